package api

import (
	"handoff-gateway/internal/api/handlers"
	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/api/middlewares"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes with proper middleware
func SetupRoutes(router *gin.Engine, services interfaces.Services) {
	cfg := services.GetConfig()

	// Global middleware
	router.Use(middlewares.Recovery(services.GetLogger()))
	router.Use(middlewares.RequestLogging(services.GetLogger()))
	router.Use(middlewares.CORS(cfg.API.CORS))
	router.Use(middlewares.Security())

	// Health check (no session required)
	router.GET("/health", handlers.HealthCheck(services))
	router.GET("/ping", handlers.HealthCheck(services))

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, handlers.Metrics(services))
	}

	api := router.Group("/api")
	api.Use(middlewares.LoadSession(services))
	{
		setupHandoffRoutes(api, services)
		setupImpersonationRoutes(api, services)
	}
}

// setupHandoffRoutes configures the browser-facing redirect endpoints
func setupHandoffRoutes(rg *gin.RouterGroup, services interfaces.Services) {
	rg.GET("/handoff", handlers.InboundHandoff(services))
	rg.GET("/legacy-handoff", handlers.LegacyHandoff(services))
	rg.GET("/stop-impersonating", handlers.StopImpersonating(services))

	// Session-establishment callback for the identity provider integration
	rg.POST("/handoff/session", middlewares.CallbackAuthRequired(services), handlers.EstablishSession(services))
}

// setupImpersonationRoutes configures the rate limited impersonation endpoints.
// Every method is routed so non-POST requests get a 405 body.
func setupImpersonationRoutes(rg *gin.RouterGroup, services interfaces.Services) {
	cfg := services.GetConfig()
	limiter := middlewares.NewRateLimiter(services.Context(), cfg.API.RateLimit, cfg.API.BurstLimit)

	impersonate := rg.Group("/impersonate")
	impersonate.Use(middlewares.RateLimit(limiter))
	{
		impersonate.Any("/user", handlers.ImpersonateUser(services))
		impersonate.Any("/organization", handlers.ImpersonateOrganization(services))
	}
}
