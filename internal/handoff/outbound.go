package handoff

import (
	"context"
	"net/url"
	"strings"

	"handoff-gateway/internal/session"
	"handoff-gateway/pkg/apperrors"
)

// AccountLists is what the upstream API knows about the caller's account lists.
type AccountLists struct {
	DefaultID string
	IDs       []string
}

// AccountListResolver looks up the caller's account lists with their API token.
type AccountListResolver interface {
	AccountLists(ctx context.Context, apiToken string) (*AccountLists, error)
}

// OutboundBuilder builds redirects toward the legacy application.
type OutboundBuilder struct {
	legacyHost string
	accounts   AccountListResolver
}

// NewOutboundBuilder creates a builder for the legacy application at legacyHost.
func NewOutboundBuilder(legacyHost string, accounts AccountListResolver) *OutboundBuilder {
	return &OutboundBuilder{legacyHost: legacyHost, accounts: accounts}
}

// BuildLegacyAppURL returns the legacy handoff URL for claims. An empty
// accountListID is resolved upstream, preferring the caller's default list.
// An empty userID falls back to the session user.
func (b *OutboundBuilder) BuildLegacyAppURL(ctx context.Context, claims *session.Claims, accountListID, userID, path string) (string, error) {
	if claims == nil {
		return "", apperrors.NewSessionAbsent("no session for legacy handoff")
	}

	if accountListID == "" {
		id, err := b.resolveAccountList(ctx, claims.APIToken)
		if err != nil {
			return "", err
		}
		accountListID = id
	}
	if userID == "" {
		userID = claims.UserID
	}

	var u strings.Builder
	u.WriteString("https://")
	u.WriteString(b.legacyHost)
	u.WriteString("/handoff?accessToken=")
	u.WriteString(url.QueryEscape(claims.APIToken))
	u.WriteString("&accountListId=")
	u.WriteString(url.QueryEscape(accountListID))
	u.WriteString("&userId=")
	u.WriteString(url.QueryEscape(userID))
	u.WriteString("&path=")
	u.WriteString(url.QueryEscape(path))
	return u.String(), nil
}

// BuildLegacyAuthURL returns the auth sub-path URL carrying the bearer token.
// Without a session the token parameter is omitted and the legacy side asks
// the browser to sign in.
func (b *OutboundBuilder) BuildLegacyAuthURL(claims *session.Claims, path string) string {
	u := "https://auth." + b.legacyHost + "/" + strings.TrimLeft(path, "/")
	if claims == nil || claims.APIToken == "" {
		return u
	}
	return u + "?access_token=" + url.QueryEscape(claims.APIToken)
}

func (b *OutboundBuilder) resolveAccountList(ctx context.Context, apiToken string) (string, error) {
	if b.accounts == nil {
		return "", apperrors.NewInternal("account list resolver not configured", nil)
	}
	lists, err := b.accounts.AccountLists(ctx, apiToken)
	if err != nil {
		return "", err
	}
	if lists == nil {
		return "", apperrors.NewUpstreamMalformed("account lists missing from response", nil)
	}
	if lists.DefaultID != "" {
		return lists.DefaultID, nil
	}
	if len(lists.IDs) > 0 && lists.IDs[0] != "" {
		return lists.IDs[0], nil
	}
	return "", apperrors.NewUpstreamMalformed("caller has no account lists", nil)
}
