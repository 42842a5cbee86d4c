package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/impersonation"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/internal/session"
	"handoff-gateway/internal/signedvalue"
	"handoff-gateway/internal/upstream"
	"handoff-gateway/pkg/config"
	"handoff-gateway/pkg/logger"
)

var (
	// ErrCallbackTokenMissing is returned when the callback carries no bearer token
	ErrCallbackTokenMissing = errors.New("callback token required")
	// ErrCallbackTokenInvalid is returned when the bearer token does not match
	ErrCallbackTokenInvalid = errors.New("invalid callback token")
	// ErrCallbackTokenNotConfigured is returned while no callback token is configured
	ErrCallbackTokenNotConfigured = errors.New("callback token not configured")
)

// Services contains all the dependencies for API handlers
type Services struct {
	// Core dependencies
	Logger   *logger.Logger
	Config   *config.Config
	Metrics  *metrics.Metrics
	Upstream *upstream.Client

	// Auth service interface
	authService interfaces.AuthServiceInterface

	// Handoff components
	sessionReader session.Reader
	inbound       *handoff.InboundResolver
	outbound      *handoff.OutboundBuilder
	establisher   *handoff.Establisher
	impersonation *impersonation.Service
	unwinder      *impersonation.Unwinder

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServices creates a new services container
func NewServices(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Services, error) {
	codec, err := signedvalue.NewCodec([]byte(cfg.Handoff.SigningSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create signed value codec: %w", err)
	}

	cookies := handoff.CookieFactory{
		Domain:         cfg.Handoff.CookieDomain,
		Secure:         cfg.Handoff.SecureCookies,
		TTL:            cfg.Handoff.CookieTTL,
		SessionCookies: cfg.Session.ClearCookies,
	}

	clientOpts := []upstream.Option{
		upstream.WithMetrics(m),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
	}
	if cfg.Upstream.RateLimit > 0 {
		clientOpts = append(clientOpts, upstream.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst))
	}
	client := upstream.NewClient(
		upstream.Config{APIURL: cfg.Upstream.APIURL, RestURL: cfg.Upstream.RestURL},
		log,
		clientOpts...,
	)

	inbound := handoff.NewInboundResolver(cfg.Handoff.SiteURL, cookies)
	outbound := handoff.NewOutboundBuilder(cfg.Handoff.LegacyHost, client)

	services := &Services{
		Logger:        log,
		Config:        cfg,
		Metrics:       m,
		Upstream:      client,
		sessionReader: session.NewJWTReader(cfg.Session.CookieName, []byte(cfg.Session.Secret), log),
		inbound:       inbound,
		outbound:      outbound,
		establisher:   handoff.NewEstablisher(codec, cookies),
		impersonation: impersonation.NewService(client, cookies, m, log),
		unwinder:      impersonation.NewUnwinder(outbound, cookies, inbound.Root(), m, log),
	}

	// Initialize auth service
	services.authService = services
	services.ctx, services.cancel = context.WithCancel(context.Background())

	log.WithFields(map[string]interface{}{
		"legacy_host": cfg.Handoff.LegacyHost,
		"site_url":    cfg.Handoff.SiteURL,
	}).Info("API services initialized")
	return services, nil
}

// ValidateCallbackToken compares token with the configured callback token in constant time
func (s *Services) ValidateCallbackToken(token string) error {
	if s.Config.Session.CallbackToken == "" {
		return ErrCallbackTokenNotConfigured
	}
	if token == "" {
		return ErrCallbackTokenMissing
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.Session.CallbackToken)) != 1 {
		return ErrCallbackTokenInvalid
	}
	return nil
}

// IsHealthy checks that every handoff component is wired
func (s *Services) IsHealthy() bool {
	return s.sessionReader != nil &&
		s.inbound != nil &&
		s.outbound != nil &&
		s.establisher != nil &&
		s.impersonation != nil &&
		s.unwinder != nil
}

// Context is done once Close has been called
func (s *Services) Context() context.Context {
	return s.ctx
}

// Close stops the background workers started for the routes
func (s *Services) Close() {
	s.cancel()
}

// Interface implementation methods
func (s *Services) GetLogger() *logger.Logger {
	return s.Logger
}

func (s *Services) GetConfig() *config.Config {
	return s.Config
}

func (s *Services) GetMetrics() *metrics.Metrics {
	return s.Metrics
}

func (s *Services) AuthService() interfaces.AuthServiceInterface {
	return s.authService
}

func (s *Services) SessionReader() session.Reader {
	return s.sessionReader
}

func (s *Services) InboundResolver() *handoff.InboundResolver {
	return s.inbound
}

func (s *Services) OutboundBuilder() *handoff.OutboundBuilder {
	return s.outbound
}

func (s *Services) Establisher() *handoff.Establisher {
	return s.establisher
}

func (s *Services) ImpersonationService() *impersonation.Service {
	return s.impersonation
}

func (s *Services) Unwinder() *impersonation.Unwinder {
	return s.unwinder
}
