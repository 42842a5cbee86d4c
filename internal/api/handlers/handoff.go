package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"handoff-gateway/internal/api/interfaces"
	"handoff-gateway/internal/api/middlewares"
	"handoff-gateway/internal/api/models"
	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/impersonation"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// InboundHandoff handles links from the legacy application. It always
// answers with a redirect: any failure lands on the application root.
func InboundHandoff(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := middlewares.GetLogger(c, services.GetLogger())
		resolver := services.InboundResolver()
		claims := middlewares.GetSessionClaims(c)

		decision, outcome := resolver.Fallback(), "fallback"
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.ReportError(c.Request.Context(), fmt.Errorf("inbound handoff panic: %v", r), nil)
					decision, outcome = resolver.Fallback(), "fallback"
				}
			}()

			req, err := handoff.ParseInboundQuery(c.Request.URL.RawQuery)
			if err != nil {
				log.Warning("Malformed inbound handoff query: %v", err)
				return
			}
			resolved, err := resolver.Resolve(req, claims)
			if err != nil {
				log.Warning("Inbound handoff rejected: %v", err)
				return
			}

			decision = resolved
			switch {
			case claims == nil:
				outcome = "login"
			case resolved.State == handoff.ConflictStaged:
				outcome = "conflict"
				log.SecurityEvent("account_conflict_staged", claims.UserID, fmt.Sprintf("requested_user=%s", req.UserID))
			default:
				outcome = "redirect"
			}
			userID := ""
			if claims != nil {
				userID = claims.UserID
			}
			log.AuditEvent("inbound_handoff", userID, req.AccountListID, outcome)
		}()

		services.GetMetrics().RecordHandoff(metrics.DirectionInbound, outcome)
		decision.Cookies.Write(c.Writer)
		c.Redirect(http.StatusFound, decision.Location)
	}
}

// LegacyHandoff redirects the caller to the legacy application, or to its
// auth sub-path when auth=true
func LegacyHandoff(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := middlewares.GetLogger(c, services.GetLogger())
		m := services.GetMetrics()

		var query models.LegacyHandoffQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			respondError(c, apperrors.New(apperrors.KindMissingParameter, "invalid query parameters", err))
			return
		}

		claims := middlewares.GetSessionClaims(c)
		builder := services.OutboundBuilder()

		if query.Auth {
			m.RecordHandoff(metrics.DirectionOutbound, "auth")
			c.Redirect(http.StatusFound, builder.BuildLegacyAuthURL(claims, query.Path))
			return
		}

		if claims == nil {
			err := apperrors.NewSessionAbsent("a session is required to hand off to the legacy application")
			log.ReportError(c.Request.Context(), err, map[string]interface{}{"path": query.Path})
			m.RecordHandoff(metrics.DirectionOutbound, "no_session")
			respondError(c, err)
			return
		}

		ctx, cancel := upstreamContext(c, services)
		defer cancel()

		location, err := builder.BuildLegacyAppURL(ctx, claims, query.AccountListID, query.UserID, query.Path)
		if err != nil {
			log.ReportError(c.Request.Context(), err, map[string]interface{}{"user_id": claims.UserID})
			m.RecordHandoff(metrics.DirectionOutbound, "error")
			respondError(c, err)
			return
		}

		log.AuditEvent("legacy_handoff", claims.UserID, query.AccountListID, "redirect")
		m.RecordHandoff(metrics.DirectionOutbound, "redirect")
		c.Redirect(http.StatusFound, location)
	}
}

// StopImpersonating restores the impersonator's identity and leaves for the
// legacy application
func StopImpersonating(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query models.StopImpersonatingQuery
		_ = c.ShouldBindQuery(&query)

		ctx, cancel := upstreamContext(c, services)
		defer cancel()

		decision := services.Unwinder().Unwind(ctx, middlewares.GetSessionClaims(c), impersonation.UnwindRequest{
			AccountListID: query.AccountListID,
			UserID:        query.UserID,
			Path:          query.Path,
		})

		decision.Cookies.Write(c.Writer)
		c.Redirect(http.StatusFound, decision.Location)
	}
}

// EstablishSession is called by the identity provider integration while it
// creates a session. It consumes the staged handoff cookies and reports the
// identity that must win.
func EstablishSession(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := middlewares.GetLogger(c, services.GetLogger())

		est := services.Establisher().Establish(c.Request, middlewares.GetSessionClaims(c))
		est.Cookies.Write(c.Writer)

		if est.State == handoff.ConflictResolved {
			log.SecurityEvent("account_conflict_resolved", est.AccountConflictUserID, "")
		}
		if est.Impersonating {
			log.SecurityEvent("impersonation_established", est.AccountConflictUserID, fmt.Sprintf("developer=%t", est.ImpersonatorDeveloper))
		}
		services.GetMetrics().RecordHandoff(metrics.DirectionSession, est.State.String())

		c.JSON(http.StatusOK, models.BaseResponse{
			Success: true,
			Data: models.EstablishmentResponse{
				State:                 est.State.String(),
				OverrideSession:       est.OverridesSession(),
				AccountConflictUserID: est.AccountConflictUserID,
				APIToken:              est.APIToken,
				Impersonating:         est.Impersonating,
				ImpersonatorAPIToken:  est.ImpersonatorAPIToken,
				ImpersonatorDeveloper: est.ImpersonatorDeveloper,
				RedirectURL:           est.RedirectURL,
			},
			Timestamp: time.Now().Unix(),
			RequestID: c.GetString("request_id"),
		})
	}
}

// upstreamContext bounds upstream calls made on behalf of c
func upstreamContext(c *gin.Context, services interfaces.Services) (context.Context, context.CancelFunc) {
	timeout := services.GetConfig().Upstream.Timeout
	if timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func respondError(c *gin.Context, err error) {
	apiErr := models.FromError(err)
	c.JSON(apiErr.StatusCode, models.BaseResponse{
		Success:   false,
		Error:     apiErr.Info(),
		Timestamp: time.Now().Unix(),
		RequestID: c.GetString("request_id"),
	})
}
