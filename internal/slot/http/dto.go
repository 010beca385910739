package http

import "github.com/nekogravitycat/locker-booking-backend/internal/slot"

type SlotResponse struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func NewSlotResponse(s slot.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		Label:     s.Label,
		StartTime: slot.FormatClock(s.Start),
		EndTime:   slot.FormatClock(s.End),
	}
}

type ListResponse struct {
	Slots []SlotResponse `json:"slots"`
}
