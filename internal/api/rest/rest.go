package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/openfloor/market-indexer/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, authConfig middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Bid event feed (public read access)
		v1.GET("/events/bids", handler.GetBidEvents)

		// Admin triggers (API key or JWT required)
		admin := v1.Group("/admin")
		admin.Use(middleware.Auth(authConfig))
		{
			admin.POST("/collections/:id/refresh-floor", handler.RefreshCollectionFloor)
		}
	}
}
