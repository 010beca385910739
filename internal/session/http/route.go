package http

import "github.com/gin-gonic/gin"

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, webhook, writeLimit gin.HandlerFunc) {
	group := g.Group("/sessions")

	// === Gateway Callbacks ===
	group.POST("/extension/confirm", webhook, h.ConfirmExtension)

	// === Authenticated Routes ===
	authed := group.Group("", authMiddleware)
	{
		authed.GET("/active", h.ListActive)
		authed.GET("/:id", h.Get)
		authed.GET("/extendable/:id", h.Extendable)
		authed.PUT("/unlock/:id", h.Unlock)
		authed.PUT("/lock/:id", h.Lock)
		authed.PUT("/release/:id", h.Release)
		authed.POST("/extension/calculate", h.Calculate)
	}

	g.POST("/bookings/extend-hourly/:session_id", authMiddleware, writeLimit, h.ExtendHourly)
}
