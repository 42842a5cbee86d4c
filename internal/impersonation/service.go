// Package impersonation starts and stops operator impersonation of another
// user or organization.
package impersonation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/internal/session"
	"handoff-gateway/internal/upstream"
	"handoff-gateway/pkg/apperrors"
	"handoff-gateway/pkg/logger"
)

// Impersonation scopes.
const (
	ScopeUser         = "user"
	ScopeOrganization = "organization"
)

// Impersonator mints impersonation tokens upstream.
type Impersonator interface {
	ImpersonateUser(ctx context.Context, apiToken, user, reason string) (*upstream.ImpersonationResponse, error)
	ImpersonateOrganization(ctx context.Context, apiToken, organizationID, user, reason string) (*upstream.ImpersonationResponse, error)
}

// UserRequest is the body of a user impersonation request.
type UserRequest struct {
	User   string `json:"user"`
	Reason string `json:"reason"`
}

// OrganizationRequest is the body of an organization impersonation request.
type OrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
	User           string `json:"user"`
	Reason         string `json:"reason"`
}

// Result is always returned, never nil, whatever happened upstream.
type Result struct {
	Status         int
	Success        bool
	InvalidRequest bool
	Errors         []upstream.APIError
	Cookies        *handoff.CookieBatch
}

// Service starts impersonation sessions.
type Service struct {
	upstream Impersonator
	cookies  handoff.CookieFactory
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewService creates an impersonation service.
func NewService(impersonator Impersonator, cookies handoff.CookieFactory, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		upstream: impersonator,
		cookies:  cookies,
		metrics:  m,
		log:      log.WithComponent("impersonation"),
	}
}

// StartUser impersonates a single user.
func (s *Service) StartUser(ctx context.Context, method string, claims *session.Claims, req UserRequest) (result *Result) {
	defer s.recoverInto(ctx, &result, ScopeUser)

	if err := authorize(method, claims); err != nil {
		return s.record(ScopeUser, errorResult(err))
	}
	if missing := firstEmpty(map[string]string{"user": req.User, "reason": req.Reason}, "user", "reason"); missing != "" {
		return s.record(ScopeUser, invalidRequest(missing))
	}

	resp, err := s.upstream.ImpersonateUser(ctx, claims.APIToken, req.User, req.Reason)
	return s.record(ScopeUser, s.finish(ctx, claims, req.User, resp, err))
}

// StartOrganization impersonates a user within an organization.
func (s *Service) StartOrganization(ctx context.Context, method string, claims *session.Claims, req OrganizationRequest) (result *Result) {
	defer s.recoverInto(ctx, &result, ScopeOrganization)

	if err := authorize(method, claims); err != nil {
		return s.record(ScopeOrganization, errorResult(err))
	}
	fields := map[string]string{"organizationId": req.OrganizationID, "user": req.User, "reason": req.Reason}
	if missing := firstEmpty(fields, "organizationId", "user", "reason"); missing != "" {
		return s.record(ScopeOrganization, invalidRequest(missing))
	}

	resp, err := s.upstream.ImpersonateOrganization(ctx, claims.APIToken, req.OrganizationID, req.User, req.Reason)
	return s.record(ScopeOrganization, s.finish(ctx, claims, req.User, resp, err))
}

func authorize(method string, claims *session.Claims) error {
	if method != http.MethodPost {
		return apperrors.New(apperrors.KindMethodNotAllowed, "impersonation requires POST", nil)
	}
	if claims == nil || claims.APIToken == "" {
		return apperrors.New(apperrors.KindUnauthorized, "no API token in session", nil)
	}
	return nil
}

func (s *Service) finish(ctx context.Context, claims *session.Claims, target string, resp *upstream.ImpersonationResponse, err error) *Result {
	if err != nil {
		s.log.ReportError(ctx, err, map[string]interface{}{"user_id": claims.UserID})
		return failure(apperrors.HTTPStatus(err), "Upstream Error", "impersonation request failed")
	}
	if resp == nil {
		return failure(http.StatusBadGateway, "Upstream Error", "empty impersonation response")
	}
	if resp.StatusCode != http.StatusOK {
		errs := resp.Errors
		if len(errs) == 0 {
			errs = []upstream.APIError{{Status: strconv.Itoa(resp.StatusCode), Title: http.StatusText(resp.StatusCode)}}
		}
		return &Result{Status: resp.StatusCode, Errors: errs, Cookies: &handoff.CookieBatch{}}
	}
	if resp.Token == "" {
		// A 200 without a token is still a failed impersonation.
		res := failure(http.StatusBadRequest, "Not Found", "impersonation token not returned")
		res.InvalidRequest = true
		return res
	}

	batch := &handoff.CookieBatch{}
	batch.Add(
		s.cookies.Stage(handoff.CookieAccountConflictUserID, claims.UserID),
		s.cookies.Stage(handoff.CookieImpersonate, resp.Token),
		s.cookies.Stage(handoff.CookieRedirectURL, "/"),
		s.cookies.Stage(handoff.CookieToken, claims.APIToken),
	)
	s.log.SecurityEvent("impersonation_started", claims.UserID, fmt.Sprintf("target=%s", target))
	return &Result{Status: http.StatusOK, Success: true, Cookies: batch}
}

func (s *Service) recoverInto(ctx context.Context, result **Result, scope string) {
	if r := recover(); r != nil {
		s.log.ReportError(ctx, fmt.Errorf("impersonation panic: %v", r), map[string]interface{}{"scope": scope})
		*result = s.record(scope, failure(http.StatusInternalServerError, "Internal Server Error", "unexpected error"))
	}
}

func (s *Service) record(scope string, res *Result) *Result {
	outcome := "failure"
	switch {
	case res.Success:
		outcome = "success"
	case res.InvalidRequest:
		outcome = "invalid"
	}
	s.metrics.RecordImpersonation(scope, outcome)
	return res
}

func failure(status int, title, detail string) *Result {
	return &Result{
		Status:  status,
		Errors:  []upstream.APIError{{Status: strconv.Itoa(status), Title: title, Detail: detail}},
		Cookies: &handoff.CookieBatch{},
	}
}

// errorResult renders err with the status of its kind.
func errorResult(err error) *Result {
	status := apperrors.HTTPStatus(err)
	detail := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		detail = appErr.Message
	}
	return failure(status, http.StatusText(status), detail)
}

func invalidRequest(field string) *Result {
	res := errorResult(apperrors.NewMissingParameter(field))
	res.InvalidRequest = true
	return res
}

// firstEmpty returns the first key in order whose value is blank.
func firstEmpty(fields map[string]string, order ...string) string {
	for _, key := range order {
		if strings.TrimSpace(fields[key]) == "" {
			return key
		}
	}
	return ""
}
