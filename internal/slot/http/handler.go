package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/locker-booking-backend/internal/slot"
)

type Handler struct {
	service slot.Service
}

func NewHandler(service slot.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	cal, err := h.service.Calendar(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	all := cal.All()
	items := make([]SlotResponse, len(all))
	for i, s := range all {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, ListResponse{Slots: items})
}
