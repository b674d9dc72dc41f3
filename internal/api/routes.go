package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/dealscout/internal/scout"
)

type handlers struct {
	svc     *scout.Service
	origins []string
	logger  *log.Logger
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	api := router.Group("/api")

	api.GET("/health", h.health)
	api.POST("/parse", h.parseQuery)

	api.GET("/listings", h.listListings)
	api.POST("/listings", h.createListing)
	api.GET("/listings/:id", h.getListing)

	api.POST("/negotiations", h.startNegotiations)
	api.POST("/negotiations/stream", h.streamNegotiation)
	api.GET("/negotiations", h.listNegotiations)
	api.GET("/negotiations/:id", h.getNegotiation)

	api.POST("/hunts", h.streamHunt)
	api.GET("/hunts/ws", h.huntWebSocket)
}
