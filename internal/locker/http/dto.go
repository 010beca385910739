package http

import (
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/shopspring/decimal"
)

type LiveRequest struct {
	HubID string `form:"hub_id" binding:"required,uuid"`
}

type LockerResponse struct {
	ID                 string           `json:"id"`
	HubID              string           `json:"hub_id"`
	LockerNumber       string           `json:"locker_number"`
	Size               string           `json:"size"`
	PricePerHour       decimal.Decimal  `json:"price_per_hour"`
	DayPrice           *decimal.Decimal `json:"day_price"`
	AvailabilityStatus string           `json:"availability_status"`
}

func NewLockerResponse(l *locker.Locker) LockerResponse {
	resp := LockerResponse{
		ID:                 l.ID,
		HubID:              l.HubID,
		LockerNumber:       l.LockerNumber,
		Size:               string(l.Size),
		PricePerHour:       l.PricePerHour,
		AvailabilityStatus: string(l.AvailabilityStatus),
	}
	if p, ok := l.DayPrice(); ok {
		resp.DayPrice = &p
	}
	return resp
}

func NewLockerListResponse(lockers []*locker.Locker) []LockerResponse {
	items := make([]LockerResponse, len(lockers))
	for i, l := range lockers {
		items[i] = NewLockerResponse(l)
	}
	return items
}

type LiveLockerResponse struct {
	LockerResponse
	LiveStatus string `json:"live_status"`
}

type LiveResponse struct {
	Count   int                  `json:"count"`
	Lockers []LiveLockerResponse `json:"lockers"`
}

func NewLiveResponse(lockers []*locker.LiveLocker) LiveResponse {
	items := make([]LiveLockerResponse, len(lockers))
	for i, l := range lockers {
		items[i] = LiveLockerResponse{
			LockerResponse: NewLockerResponse(&l.Locker),
			LiveStatus:     string(l.Status),
		}
	}
	return LiveResponse{Count: len(items), Lockers: items}
}
