package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/locker"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/response"
)

type Handler struct {
	service locker.Service
}

func NewHandler(service locker.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Live(c *gin.Context) {
	var req LiveRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hub_id required", "details": err.Error()})
		return
	}

	lockers, err := h.service.Live(c.Request.Context(), req.HubID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewLiveResponse(lockers))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid locker id", "details": err.Error()})
		return
	}

	l, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewLockerResponse(l))
}
