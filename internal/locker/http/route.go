package http

import "github.com/gin-gonic/gin"

func RegisterRoutes(g *gin.RouterGroup, h *Handler) {
	group := g.Group("/lockers")
	{
		group.GET("/live", h.Live)
		group.GET("/:id", h.Get)
	}
}
