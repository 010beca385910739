package http

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts gateway callbacks behind the webhook guard.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, webhook gin.HandlerFunc) {
	group := g.Group("/payments", webhook)
	{
		group.POST("/confirm-payment/:booking_id", h.ConfirmPayment)
	}
}
