package handoff

import (
	"net/http"

	"handoff-gateway/internal/session"
	"handoff-gateway/internal/signedvalue"
)

// ConflictState tracks an account conflict across the re-authentication
// redirect. It lives only in the single-use handoff cookies.
type ConflictState int

const (
	// NoConflict means the session already belongs to the requested user.
	NoConflict ConflictState = iota
	// ConflictStaged means the session was dropped and the winning identity is waiting in cookies.
	ConflictStaged
	// ConflictResolved means the session-establishment callback consumed the staged identity.
	ConflictResolved
)

func (s ConflictState) String() string {
	switch s {
	case NoConflict:
		return "no_conflict"
	case ConflictStaged:
		return "conflict_staged"
	case ConflictResolved:
		return "conflict_resolved"
	default:
		return "unknown"
	}
}

// Establishment is the identity the identity provider must adopt for the
// session it is creating, taken from the staged handoff cookies.
type Establishment struct {
	State                 ConflictState
	AccountConflictUserID string
	APIToken              string
	Impersonating         bool
	ImpersonatorAPIToken  string
	ImpersonatorDeveloper bool
	RedirectURL           string
	Cookies               *CookieBatch
}

// OverridesSession reports whether a staged token must replace the one the
// identity provider authenticated.
func (e *Establishment) OverridesSession() bool {
	return e.APIToken != ""
}

// Establisher consumes staged handoff cookies when a session is created.
type Establisher struct {
	codec   *signedvalue.Codec
	cookies CookieFactory
}

// NewEstablisher creates an Establisher signing flags with codec.
func NewEstablisher(codec *signedvalue.Codec, cookies CookieFactory) *Establisher {
	return &Establisher{codec: codec, cookies: cookies}
}

// Establish reads and clears every staged cookie on r. current is the session
// the identity provider authenticated, or nil.
func (e *Establisher) Establish(r *http.Request, current *session.Claims) *Establishment {
	est := &Establishment{State: NoConflict, Cookies: &CookieBatch{}}

	consume := func(name string) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		est.Cookies.Add(e.cookies.Clear(name))
		return c.Value
	}

	conflictUserID := consume(CookieAccountConflictUserID)
	token := consume(CookieToken)
	impersonate := consume(CookieImpersonate)
	developerFlag := consume(CookieImpersonatorDeveloper)
	est.RedirectURL = consume(CookieRedirectURL)
	consume(CookieLoggedIn)

	if conflictUserID != "" {
		est.State = ConflictResolved
		est.AccountConflictUserID = conflictUserID
	}

	impersonatorToken := token
	if impersonatorToken == "" && current != nil {
		impersonatorToken = current.APIToken
	}

	switch {
	case impersonate != "" && impersonatorToken != "" && !tokenExpired(impersonate):
		est.APIToken = impersonate
		est.Impersonating = true
		est.ImpersonatorAPIToken = impersonatorToken
		if current != nil && current.Developer {
			est.ImpersonatorDeveloper = true
			ttl := int(e.cookies.ttl().Seconds())
			est.Cookies.Add(e.cookies.Stage(CookieImpersonatorDeveloper, e.codec.Sign(true, ttl)))
		}
	case token != "":
		est.APIToken = token
	}

	if developerFlag != "" {
		if value, ok := e.codec.Verify(developerFlag); ok && value == "true" {
			est.ImpersonatorDeveloper = true
		}
	}

	return est
}

// tokenExpired treats undecodable tokens as live; the upstream API is the
// authority on opaque tokens.
func tokenExpired(token string) bool {
	expired, err := session.IsTokenExpired(token)
	return err == nil && expired
}
