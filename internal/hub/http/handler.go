package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/hub"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/locker-booking-backend/internal/pkg/response"
)

type Handler struct {
	service hub.Service
}

func NewHandler(service hub.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	var req ListHubsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	req.Normalize()

	hubs, total, err := h.service.List(c.Request.Context(), hub.Filter{
		City:     req.City,
		Keyword:  req.Keyword,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]HubResponse, len(hubs))
	for i, hb := range hubs {
		items[i] = NewHubResponse(hb)
	}
	c.JSON(http.StatusOK, response.NewPage(items, req.ListParams, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hub id", "details": err.Error()})
		return
	}

	hb, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewHubResponse(hb))
}
