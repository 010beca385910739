package http

import (
	"time"

	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
)

type ListHubsRequest struct {
	request.ListParams
	City    string `form:"city"`
	Keyword string `form:"q"`
}

type HubResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Address   string    `json:"address"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

func NewHubResponse(h *hub.Hub) HubResponse {
	return HubResponse{
		ID:        h.ID,
		Name:      h.Name,
		City:      h.City,
		Address:   h.Address,
		Latitude:  h.Latitude,
		Longitude: h.Longitude,
		CreatedAt: h.CreatedAt,
	}
}
