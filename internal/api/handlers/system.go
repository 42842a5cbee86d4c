package handlers

import (
	"net/http"
	"time"

	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/api/models"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

// HealthCheck provides a simple health check endpoint
func HealthCheck(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if !services.IsHealthy() {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		c.JSON(code, models.HealthResponse{
			Status:     status,
			Timestamp:  time.Now().Unix(),
			Version:    version,
			LegacyHost: services.GetConfig().Handoff.LegacyHost,
		})
	}
}

// Metrics serves the Prometheus registry
func Metrics(services interfaces.Services) gin.HandlerFunc {
	return gin.WrapH(services.GetMetrics().Handler())
}
