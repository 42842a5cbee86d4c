// Package upstream talks to the product API: the GraphQL endpoint for account
// lists and the REST admin endpoints that mint impersonation tokens.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"handoff-gateway/internal/handoff"
	"handoff-gateway/internal/metrics"
	"handoff-gateway/pkg/apperrors"
	"handoff-gateway/pkg/logger"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxResponseSize = 256 * 1024

const accountListsQuery = `query HandoffAccountLists {
  user { defaultAccountList }
  accountLists(first: 1) { nodes { id } }
}`

// Operation names used for metrics.
const (
	OpAccountLists            = "account_lists"
	OpImpersonateUser         = "impersonate_user"
	OpImpersonateOrganization = "impersonate_organization"
)

// APIError is one structured error returned by the REST API.
type APIError struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ImpersonationResponse is the upstream answer to an impersonation request.
// Token is empty when the body did not carry a json_web_token.
type ImpersonationResponse struct {
	StatusCode int
	Token      string
	Errors     []APIError
}

// Config holds the upstream endpoints.
type Config struct {
	APIURL  string
	RestURL string
}

// Client is an HTTP client for the upstream API.
type Client struct {
	apiURL      string
	restURL     string
	http        *http.Client
	rateLimiter *rate.Limiter
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.http = c }
}

// WithMetrics records upstream latency and status codes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(client *Client) { client.metrics = m }
}

// WithRateLimit bounds outgoing requests per second. Burst is at least one.
func WithRateLimit(perSecond float64, burst int) Option {
	if burst < 1 {
		burst = 1
	}
	return func(client *Client) { client.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates an upstream client.
func NewClient(cfg Config, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		apiURL:      cfg.APIURL,
		restURL:     strings.TrimRight(cfg.RestURL, "/"),
		http:        &http.Client{},
		rateLimiter: rate.NewLimiter(100, 200),
		log:         log.WithComponent("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccountLists returns the caller's default account list and the first
// account list id the API knows for them.
func (c *Client) AccountLists(ctx context.Context, apiToken string) (*handoff.AccountLists, error) {
	payload, err := json.Marshal(map[string]string{
		"operationName": "HandoffAccountLists",
		"query":         accountListsQuery,
	})
	if err != nil {
		return nil, apperrors.NewInternal("encode account lists query", err)
	}

	status, body, err := c.do(ctx, OpAccountLists, c.apiURL, apiToken, "application/json", payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apperrors.NewUpstreamRejected(status, "account lists query rejected")
	}
	if !gjson.ValidBytes(body) {
		return nil, apperrors.NewUpstreamMalformed("account lists response is not JSON", nil)
	}

	result := gjson.ParseBytes(body)
	if errs := result.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		return nil, apperrors.NewUpstreamRejected(http.StatusBadGateway, errs.Get("0.message").String())
	}

	lists := &handoff.AccountLists{DefaultID: result.Get("data.user.defaultAccountList").String()}
	for _, id := range result.Get("data.accountLists.nodes.#.id").Array() {
		if id.String() != "" {
			lists.IDs = append(lists.IDs, id.String())
		}
	}
	return lists, nil
}

// ImpersonateUser asks the API for a token acting as user.
func (c *Client) ImpersonateUser(ctx context.Context, apiToken, user, reason string) (*ImpersonationResponse, error) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "impersonation",
			"attributes": map[string]string{
				"user":   user,
				"reason": reason,
			},
		},
	}
	return c.impersonate(ctx, OpImpersonateUser, c.restURL+"/admin/impersonation", apiToken, body)
}

// ImpersonateOrganization asks the API for a token acting as user within organizationID.
func (c *Client) ImpersonateOrganization(ctx context.Context, apiToken, organizationID, user, reason string) (*ImpersonationResponse, error) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "impersonation",
			"attributes": map[string]string{
				"organization_id": organizationID,
				"user":            user,
				"reason":          reason,
			},
		},
	}
	return c.impersonate(ctx, OpImpersonateOrganization, c.restURL+"/admin/organizations/impersonation", apiToken, body)
}

func (c *Client) impersonate(ctx context.Context, op, endpoint, apiToken string, body interface{}) (*ImpersonationResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternal("encode impersonation request", err)
	}

	status, respBody, err := c.do(ctx, op, endpoint, apiToken, "application/vnd.api+json", payload)
	if err != nil {
		return nil, err
	}

	resp := &ImpersonationResponse{StatusCode: status}
	if !gjson.ValidBytes(respBody) {
		if status == http.StatusOK {
			return nil, apperrors.NewUpstreamMalformed("impersonation response is not JSON", nil)
		}
		resp.Errors = []APIError{{Status: strconv.Itoa(status), Title: http.StatusText(status)}}
		return resp, nil
	}

	result := gjson.ParseBytes(respBody)
	resp.Token = result.Get("data.attributes.json_web_token").String()
	if resp.Token == "" {
		resp.Token = result.Get("json_web_token").String()
	}
	result.Get("errors").ForEach(func(_, e gjson.Result) bool {
		resp.Errors = append(resp.Errors, APIError{
			Status: e.Get("status").String(),
			Title:  e.Get("title").String(),
			Detail: e.Get("detail").String(),
		})
		return true
	})
	if status != http.StatusOK && len(resp.Errors) == 0 {
		resp.Errors = []APIError{{Status: strconv.Itoa(status), Title: http.StatusText(status)}}
	}
	return resp, nil
}

// do sends one authenticated POST and returns the status and a bounded body.
func (c *Client) do(ctx context.Context, op, endpoint, apiToken, contentType string, payload []byte) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, apperrors.New(apperrors.KindUpstreamRejected, "upstream rate limit wait failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, apperrors.NewInternal("build upstream request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Authorization", "Bearer "+apiToken)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(op, 0, start)
		return 0, nil, apperrors.New(apperrors.KindUpstreamRejected, fmt.Sprintf("%s request failed", op), err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("Failed to close response body: %v", err)
		}
	}()
	c.metrics.ObserveUpstream(op, resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, apperrors.New(apperrors.KindUpstreamRejected, fmt.Sprintf("read %s response", op), err)
	}

	c.log.PerformanceEvent(op, time.Since(start), resp.StatusCode == http.StatusOK)
	return resp.StatusCode, body, nil
}
