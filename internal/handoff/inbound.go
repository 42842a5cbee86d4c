package handoff

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"handoff-gateway/internal/session"
	"handoff-gateway/pkg/apperrors"
)

// Query keys consumed by the inbound handoff; every other key is an extra.
const (
	ParamPath          = "path"
	ParamAccountListID = "accountListId"
	ParamUserID        = "userId"
	ParamToken         = "token"
	ParamImpersonate   = "impersonate"

	paramContactID = "contactId"
	paramGroup     = "group"
	paramFilters   = "filters"
)

var contactRoute = regexp.MustCompile(`(^|/)(contacts|reports)(/|$)`)

// QueryParam is one key/value pair in the order it appeared in the query string.
type QueryParam struct {
	Key   string
	Value string
}

// InboundRequest is a handoff link coming from the legacy application.
type InboundRequest struct {
	Path          string
	AccountListID string
	UserID        string
	Token         string
	Impersonate   string
	Extra         []QueryParam
}

// ParseInboundQuery reads rawQuery preserving the order of extra parameters.
// The first occurrence of a consumed key wins.
func ParseInboundQuery(rawQuery string) (InboundRequest, error) {
	var req InboundRequest
	seen := make(map[string]bool)

	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return InboundRequest{}, fmt.Errorf("invalid query key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return InboundRequest{}, fmt.Errorf("invalid value for %q: %w", key, err)
		}

		var field *string
		switch key {
		case ParamPath:
			field = &req.Path
		case ParamAccountListID:
			field = &req.AccountListID
		case ParamUserID:
			field = &req.UserID
		case ParamToken:
			field = &req.Token
		case ParamImpersonate:
			field = &req.Impersonate
		default:
			req.Extra = append(req.Extra, QueryParam{Key: key, Value: value})
			continue
		}
		if !seen[key] {
			*field = value
			seen[key] = true
		}
	}
	return req, nil
}

// Decision is where to send the browser and which cookies to set on the way.
type Decision struct {
	Location string
	State    ConflictState
	Cookies  *CookieBatch
}

// InboundResolver turns legacy handoff links into destinations inside this application.
type InboundResolver struct {
	siteURL string
	cookies CookieFactory
	presets []TaskFilterPreset
}

// NewInboundResolver creates a resolver for the application rooted at siteURL.
func NewInboundResolver(siteURL string, cookies CookieFactory) *InboundResolver {
	return &InboundResolver{
		siteURL: strings.TrimRight(siteURL, "/"),
		cookies: cookies,
		presets: DefaultTaskFilterPresets,
	}
}

// Root returns the application root URL.
func (r *InboundResolver) Root() string {
	return r.siteURL + "/"
}

// LoginURL returns the login route.
func (r *InboundResolver) LoginURL() string {
	return r.siteURL + "/login"
}

// Fallback is the decision used whenever a handoff cannot be honoured.
func (r *InboundResolver) Fallback() *Decision {
	return &Decision{Location: r.Root(), State: NoConflict, Cookies: &CookieBatch{}}
}

// Resolve decides the redirect and cookie batch for req given the caller's
// current session, which may be nil.
func (r *InboundResolver) Resolve(req InboundRequest, claims *session.Claims) (*Decision, error) {
	if req.Path == "" {
		return nil, apperrors.NewMissingParameter(ParamPath)
	}
	if req.AccountListID == "" {
		return nil, apperrors.NewMissingParameter(ParamAccountListID)
	}

	isAccountConflict := req.UserID != "" && claims != nil && req.UserID != claims.UserID

	destination, err := r.Destination(req)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		Location: destination,
		State:    NoConflict,
		Cookies:  &CookieBatch{},
	}

	if isAccountConflict {
		decision.State = ConflictStaged
		decision.Cookies.Add(r.cookies.InvalidateSession()...)
		decision.Cookies.Add(
			r.cookies.Stage(CookieAccountConflictUserID, req.UserID),
			r.cookies.Stage(CookieRedirectURL, destination),
			r.cookies.Stage(CookieToken, req.Token),
		)
	}

	if req.Impersonate != "" {
		decision.Cookies.Add(
			r.cookies.Stage(CookieImpersonate, req.Impersonate),
			r.cookies.Stage(CookieRedirectURL, destination),
			r.cookies.Stage(CookieToken, req.Token),
		)
	}

	if claims == nil {
		decision.Cookies.Add(
			r.cookies.Stage(CookieRedirectURL, destination),
			r.cookies.LoggedIn(),
		)
		decision.Location = r.LoginURL()
	}

	return decision, nil
}

// Destination builds {site}/accountLists/{id}{path} and folds the extra
// parameters into it. Each extra is written as "key=value&"; the dangling
// ampersand is part of the URL format legacy links already depend on.
func (r *InboundResolver) Destination(req InboundRequest) (string, error) {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var base strings.Builder
	base.WriteString(r.siteURL)
	base.WriteString("/accountLists/")
	base.WriteString(url.PathEscape(req.AccountListID))
	base.WriteString(path)

	if len(req.Extra) == 0 {
		return base.String(), nil
	}

	var query strings.Builder
	for _, p := range req.Extra {
		switch {
		case p.Key == paramContactID && contactRoute.MatchString(path):
			// spliced into the path, ahead of the query string
			base.WriteString("/")
			base.WriteString(url.PathEscape(p.Value))
		case p.Key == paramGroup && strings.Contains(path, "/tasks"):
			preset, ok := findTaskFilterPreset(r.presets, p.Value)
			if !ok {
				writeQueryParam(&query, p.Key, p.Value)
				continue
			}
			filters, err := preset.FiltersJSON()
			if err != nil {
				return "", apperrors.NewInternal("encode task filters", err)
			}
			writeQueryParam(&query, paramFilters, filters)
		default:
			writeQueryParam(&query, p.Key, p.Value)
		}
	}

	return base.String() + "?" + query.String(), nil
}

func writeQueryParam(b *strings.Builder, key, value string) {
	b.WriteString(url.QueryEscape(key))
	b.WriteString("=")
	b.WriteString(url.QueryEscape(value))
	b.WriteString("&")
}
