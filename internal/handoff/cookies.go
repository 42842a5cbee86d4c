package handoff

import (
	"net/http"
	"strings"
	"time"
)

// CookiePrefix namespaces every cookie used to ferry identity across a handoff.
const CookiePrefix = "mpdx-handoff."

// Handoff cookie names.
const (
	CookieToken                 = CookiePrefix + "token"
	CookieImpersonate           = CookiePrefix + "impersonate"
	CookieAccountConflictUserID = CookiePrefix + "accountConflictUserId"
	CookieRedirectURL           = CookiePrefix + "redirect-url"
	CookieLoggedIn              = CookiePrefix + "logged-in"
	CookieImpersonatorDeveloper = CookiePrefix + "isImpersonatorDeveloper"
)

// DefaultCookieTTL is how long staged handoff cookies live.
const DefaultCookieTTL = 5 * time.Minute

// CookieFactory builds handoff cookies with deployment-wide attributes.
type CookieFactory struct {
	Domain         string
	Secure         bool
	TTL            time.Duration
	SessionCookies []string // the session store's cookies, cleared to force re-authentication
}

func (f CookieFactory) ttl() time.Duration {
	if f.TTL <= 0 {
		return DefaultCookieTTL
	}
	return f.TTL
}

// Stage returns a short-lived HttpOnly cookie carrying value.
func (f CookieFactory) Stage(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(f.ttl().Seconds()),
		HttpOnly: true,
		Secure:   f.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// LoggedIn returns the marker read by client code on the login page. It is a
// domain-scoped session cookie and is readable from scripts.
func (f CookieFactory) LoggedIn() *http.Cookie {
	return &http.Cookie{
		Name:     CookieLoggedIn,
		Value:    "true",
		Path:     "/",
		Domain:   f.Domain,
		Secure:   f.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns a cookie that removes name (Max-Age=0).
func (f CookieFactory) Clear(name string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   f.Secure || strings.HasPrefix(name, "__Secure-") || strings.HasPrefix(name, "__Host-"),
	}
	if name == CookieLoggedIn {
		c.Domain = f.Domain
		c.HttpOnly = false
	}
	return c
}

// InvalidateSession returns the cookies that drop the caller's current session.
func (f CookieFactory) InvalidateSession() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(f.SessionCookies))
	for _, name := range f.SessionCookies {
		cookies = append(cookies, f.Clear(name))
	}
	return cookies
}

// CookieBatch accumulates the cookies of one response. Branches may set the
// same name more than once; Cookies collapses them so each name is emitted
// once, at the position it was first added, with the last value written.
type CookieBatch struct {
	cookies []*http.Cookie
}

// Add appends cookies to the batch.
func (b *CookieBatch) Add(cookies ...*http.Cookie) {
	b.cookies = append(b.cookies, cookies...)
}

// Cookies returns the deduplicated batch.
func (b *CookieBatch) Cookies() []*http.Cookie {
	if b == nil {
		return nil
	}
	index := make(map[string]int, len(b.cookies))
	out := make([]*http.Cookie, 0, len(b.cookies))
	for _, c := range b.cookies {
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// Len returns the number of distinct cookies in the batch.
func (b *CookieBatch) Len() int {
	return len(b.Cookies())
}

// Write emits the deduplicated batch as Set-Cookie headers.
func (b *CookieBatch) Write(w http.ResponseWriter) {
	for _, c := range b.Cookies() {
		http.SetCookie(w, c)
	}
}
