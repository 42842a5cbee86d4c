package interfaces

import (
	"context"

	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/impersonation"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/internal/session"
	"handoff-gateway/pkg/config"
	"handoff-gateway/pkg/logger"
)

// Services defines the interface for API services
type Services interface {
	GetLogger() *logger.Logger
	GetConfig() *config.Config
	GetMetrics() *metrics.Metrics
	AuthService() AuthServiceInterface
	SessionReader() session.Reader
	InboundResolver() *handoff.InboundResolver
	OutboundBuilder() *handoff.OutboundBuilder
	Establisher() *handoff.Establisher
	ImpersonationService() *impersonation.Service
	Unwinder() *impersonation.Unwinder
	IsHealthy() bool
	// Context is cancelled by Close; background workers stop with it.
	Context() context.Context
}
