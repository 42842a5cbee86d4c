package impersonation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/internal/session"
	"handoff-gateway/internal/upstream"
	"handoff-gateway/pkg/apperrors"
	"handoff-gateway/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockImpersonator struct {
	mock.Mock
}

func (m *mockImpersonator) ImpersonateUser(ctx context.Context, apiToken, user, reason string) (*upstream.ImpersonationResponse, error) {
	args := m.Called(ctx, apiToken, user, reason)
	resp, _ := args.Get(0).(*upstream.ImpersonationResponse)
	return resp, args.Error(1)
}

func (m *mockImpersonator) ImpersonateOrganization(ctx context.Context, apiToken, organizationID, user, reason string) (*upstream.ImpersonationResponse, error) {
	args := m.Called(ctx, apiToken, organizationID, user, reason)
	resp, _ := args.Get(0).(*upstream.ImpersonationResponse)
	return resp, args.Error(1)
}

func testCookies() handoff.CookieFactory {
	return handoff.CookieFactory{
		Domain:         "example.org",
		Secure:         true,
		SessionCookies: []string{"__Secure-session-token", "session-token"},
	}
}

func newTestService(imp Impersonator) (*Service, *metrics.Metrics) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewService(imp, testCookies(), m, logger.NewLogger("error", "")), m
}

var operator = &session.Claims{APIToken: "operator-token", UserID: "op-1", Admin: true}

func cookieValues(res *Result) map[string]string {
	values := make(map[string]string)
	for _, c := range res.Cookies.Cookies() {
		values[c.Name] = c.Value
	}
	return values
}

func TestStartUserRequiresPost(t *testing.T) {
	imp := &mockImpersonator{}
	svc, m := newTestService(imp)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		res := svc.StartUser(context.Background(), method, operator, UserRequest{User: "u", Reason: "r"})
		require.NotNil(t, res)
		assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
		assert.False(t, res.Success)
		assert.Zero(t, res.Cookies.Len())
		assert.Equal(t, []upstream.APIError{{Status: "405", Title: "Method Not Allowed", Detail: "impersonation requires POST"}}, res.Errors)
	}

	imp.AssertNumberOfCalls(t, "ImpersonateUser", 0)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Impersonations.WithLabelValues(ScopeUser, "failure")))
}

func TestStartUserRequiresToken(t *testing.T) {
	imp := &mockImpersonator{}
	svc, _ := newTestService(imp)

	res := svc.StartUser(context.Background(), http.MethodPost, nil, UserRequest{User: "u", Reason: "r"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, []upstream.APIError{{Status: "401", Title: "Unauthorized", Detail: "no API token in session"}}, res.Errors)

	res = svc.StartUser(context.Background(), http.MethodPost, &session.Claims{UserID: "op-1"}, UserRequest{User: "u", Reason: "r"})
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	imp.AssertNotCalled(t, "ImpersonateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStartUserValidatesBody(t *testing.T) {
	imp := &mockImpersonator{}
	svc, _ := newTestService(imp)

	tests := []struct {
		name  string
		req   UserRequest
		field string
	}{
		{"MissingUser", UserRequest{Reason: "r"}, "user"},
		{"MissingReason", UserRequest{User: "u"}, "reason"},
		{"BlankReason", UserRequest{User: "u", Reason: "   "}, "reason"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.StartUser(context.Background(), http.MethodPost, operator, tt.req)
			assert.Equal(t, http.StatusBadRequest, res.Status)
			assert.True(t, res.InvalidRequest)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0].Detail, tt.field)
		})
	}

	imp.AssertNumberOfCalls(t, "ImpersonateUser", 0)
}

func TestStartUserSuccess(t *testing.T) {
	imp := &mockImpersonator{}
	imp.On("ImpersonateUser", mock.Anything, "operator-token", "target@example.org", "ticket 42").
		Return(&upstream.ImpersonationResponse{StatusCode: http.StatusOK, Token: "imp.jwt.sig"}, nil).Once()
	svc, m := newTestService(imp)

	res := svc.StartUser(context.Background(), http.MethodPost, operator, UserRequest{User: "target@example.org", Reason: "ticket 42"})

	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]string{
		handoff.CookieAccountConflictUserID: "op-1",
		handoff.CookieImpersonate:           "imp.jwt.sig",
		handoff.CookieRedirectURL:           "/",
		handoff.CookieToken:                 "operator-token",
	}, cookieValues(res))
	for _, c := range res.Cookies.Cookies() {
		assert.True(t, c.HttpOnly, c.Name)
		assert.Equal(t, 300, c.MaxAge, c.Name)
	}
	imp.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Impersonations.WithLabelValues(ScopeUser, "success")))
}

func TestStartUserMissingTokenIsInvalid(t *testing.T) {
	imp := &mockImpersonator{}
	imp.On("ImpersonateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&upstream.ImpersonationResponse{StatusCode: http.StatusOK}, nil)
	svc, _ := newTestService(imp)

	res := svc.StartUser(context.Background(), http.MethodPost, operator, UserRequest{User: "u", Reason: "r"})

	assert.True(t, res.InvalidRequest)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "400", res.Errors[0].Status)
	assert.Zero(t, res.Cookies.Len())
}

func TestStartUserPassesUpstreamErrorsThrough(t *testing.T) {
	upstreamErrs := []upstream.APIError{
		{Status: "403", Title: "Forbidden", Detail: "not an admin"},
		{Status: "403", Title: "Forbidden", Detail: "reason too short"},
	}
	imp := &mockImpersonator{}
	imp.On("ImpersonateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&upstream.ImpersonationResponse{StatusCode: http.StatusForbidden, Errors: upstreamErrs}, nil)
	svc, _ := newTestService(imp)

	res := svc.StartUser(context.Background(), http.MethodPost, operator, UserRequest{User: "u", Reason: "r"})

	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, upstreamErrs, res.Errors)
	assert.False(t, res.InvalidRequest)
	assert.Zero(t, res.Cookies.Len())
}

func TestStartUserTransportError(t *testing.T) {
	imp := &mockImpersonator{}
	imp.On("ImpersonateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, apperrors.New(apperrors.KindUpstreamRejected, "impersonate_user request failed", errors.New("dial tcp: refused")))
	svc, _ := newTestService(imp)

	res := svc.StartUser(context.Background(), http.MethodPost, operator, UserRequest{User: "u", Reason: "r"})

	assert.Equal(t, http.StatusBadGateway, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Zero(t, res.Cookies.Len())
}

func TestStartUserRecoversFromPanic(t *testing.T) {
	imp := &mockImpersonator{}
	imp.On("ImpersonateUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") })
	svc, _ := newTestService(imp)

	var res *Result
	require.NotPanics(t, func() {
		res = svc.StartUser(context.Background(), http.MethodPost, operator, UserRequest{User: "u", Reason: "r"})
	})
	require.NotNil(t, res)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Zero(t, res.Cookies.Len())
}

func TestStartOrganization(t *testing.T) {
	t.Run("RequiresOrganization", func(t *testing.T) {
		imp := &mockImpersonator{}
		svc, _ := newTestService(imp)

		res := svc.StartOrganization(context.Background(), http.MethodPost, operator, OrganizationRequest{User: "u", Reason: "r"})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.True(t, res.InvalidRequest)
		imp.AssertNumberOfCalls(t, "ImpersonateOrganization", 0)
	})

	t.Run("RequiresPost", func(t *testing.T) {
		imp := &mockImpersonator{}
		svc, _ := newTestService(imp)

		res := svc.StartOrganization(context.Background(), http.MethodGet, operator,
			OrganizationRequest{OrganizationID: "org-1", User: "u", Reason: "r"})
		assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
		imp.AssertNumberOfCalls(t, "ImpersonateOrganization", 0)
	})

	t.Run("Success", func(t *testing.T) {
		imp := &mockImpersonator{}
		imp.On("ImpersonateOrganization", mock.Anything, "operator-token", "org-1", "u", "r").
			Return(&upstream.ImpersonationResponse{StatusCode: http.StatusOK, Token: "org.jwt.sig"}, nil).Once()
		svc, m := newTestService(imp)

		res := svc.StartOrganization(context.Background(), http.MethodPost, operator,
			OrganizationRequest{OrganizationID: "org-1", User: "u", Reason: "r"})
		assert.True(t, res.Success)
		assert.Equal(t, "org.jwt.sig", cookieValues(res)[handoff.CookieImpersonate])
		imp.AssertExpectations(t)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Impersonations.WithLabelValues(ScopeOrganization, "success")))
	})
}
