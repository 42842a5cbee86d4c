package impersonation

import (
	"context"
	"fmt"

	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/internal/session"
	"handoff-gateway/pkg/logger"
)

// LegacyURLBuilder computes where a restored identity lands in the legacy application.
type LegacyURLBuilder interface {
	BuildLegacyAppURL(ctx context.Context, claims *session.Claims, accountListID, userID, path string) (string, error)
}

// UnwindRequest names where the operator should land after impersonation ends.
type UnwindRequest struct {
	AccountListID string
	UserID        string
	Path          string
}

// Unwinder ends impersonation and sends the operator back to the legacy application.
type Unwinder struct {
	builder LegacyURLBuilder
	cookies handoff.CookieFactory
	root    string
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewUnwinder creates an Unwinder. root is the application root URL used as
// the fallback destination.
func NewUnwinder(builder LegacyURLBuilder, cookies handoff.CookieFactory, root string, m *metrics.Metrics, log *logger.Logger) *Unwinder {
	return &Unwinder{
		builder: builder,
		cookies: cookies,
		root:    root,
		metrics: m,
		log:     log.WithComponent("impersonation"),
	}
}

// Unwind always clears the current session. With usable claims it stages the
// impersonator's token and redirects to the legacy application; otherwise it
// redirects to the application root.
func (u *Unwinder) Unwind(ctx context.Context, claims *session.Claims, req UnwindRequest) (decision *handoff.Decision) {
	decision = &handoff.Decision{Location: u.root, State: handoff.NoConflict, Cookies: &handoff.CookieBatch{}}
	decision.Cookies.Add(u.cookies.InvalidateSession()...)

	defer func() {
		if r := recover(); r != nil {
			u.log.ReportError(ctx, fmt.Errorf("unwind panic: %v", r), nil)
			decision.Location = u.root
			u.metrics.RecordHandoff(metrics.DirectionUnwind, "fallback")
		}
	}()

	if claims == nil {
		u.log.Info("Stop impersonating without a session")
		u.metrics.RecordHandoff(metrics.DirectionUnwind, "fallback")
		return decision
	}

	restored := *claims
	if claims.ImpersonatorAPIToken != "" {
		restored.APIToken = claims.ImpersonatorAPIToken
	}
	restored.Impersonating = false
	restored.ImpersonatorAPIToken = ""

	decision.Cookies.Add(u.cookies.Stage(handoff.CookieRedirectURL, u.root))
	if claims.ImpersonatorAPIToken != "" {
		decision.Cookies.Add(u.cookies.Stage(handoff.CookieToken, claims.ImpersonatorAPIToken))
	}

	location, err := u.builder.BuildLegacyAppURL(ctx, &restored, req.AccountListID, req.UserID, req.Path)
	if err != nil {
		u.log.ReportError(ctx, err, map[string]interface{}{"user_id": claims.UserID})
		u.metrics.RecordHandoff(metrics.DirectionUnwind, "fallback")
		return decision
	}

	decision.Location = location
	u.log.SecurityEvent("impersonation_stopped", claims.UserID, fmt.Sprintf("account_list=%s", req.AccountListID))
	u.metrics.RecordHandoff(metrics.DirectionUnwind, "redirect")
	return decision
}
