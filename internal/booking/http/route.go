package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/locker-booking-backend/internal/auth"
)

// RegisterRoutes mounts /bookings. writeLimit throttles endpoints that
// reserve or move money.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, writeLimit gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Public Routes ===
	{
		group.GET("/available-by-slot", h.AvailableBySlot)
		group.GET("/available-by-day", h.AvailableByDay)
		group.POST("/check", h.Check)
	}

	// === Authenticated Routes ===
	authed := group.Group("", authMiddleware)
	{
		authed.GET("", h.List)
		authed.GET("/:id", h.Get)
		authed.POST("/create-group", writeLimit, h.CreateGroup)
		authed.PUT("/:id/cancel", h.Cancel)
		authed.PUT("/:id/extend", writeLimit, h.Extend)
		authed.PUT("/:id/extension/settle", auth.RequireRole(auth.RoleStaff), h.SettleExtension)
	}
}
