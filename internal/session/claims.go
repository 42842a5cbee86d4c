// Package session reads the caller's current session claims from the identity
// provider's session store. The store itself is external; this package only
// decodes what it hands over.
package session

import (
	"errors"
	"net/http"
)

var (
	// ErrImpersonationMismatch is returned when impersonatorApiToken and impersonating disagree.
	ErrImpersonationMismatch = errors.New("impersonator token must be set if and only if impersonating")
	// ErrMissingUser is returned when the claims carry no user id.
	ErrMissingUser = errors.New("session has no user id")
)

// Claims are the decoded fields of the caller's current session.
type Claims struct {
	APIToken             string `json:"apiToken"`
	UserID               string `json:"userID"`
	Admin                bool   `json:"admin"`
	Developer            bool   `json:"developer"`
	Impersonating        bool   `json:"impersonating"`
	ImpersonatorAPIToken string `json:"impersonatorApiToken,omitempty"`
	Language             string `json:"userLanguage,omitempty"`
}

// Validate checks the invariants the session store guarantees.
func (c *Claims) Validate() error {
	if c.UserID == "" {
		return ErrMissingUser
	}
	if c.Impersonating != (c.ImpersonatorAPIToken != "") {
		return ErrImpersonationMismatch
	}
	return nil
}

// Reader returns the caller's session claims, or nil when there is no usable session.
type Reader interface {
	Read(r *http.Request) *Claims
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(r *http.Request) *Claims

// Read calls f(r).
func (f ReaderFunc) Read(r *http.Request) *Claims {
	return f(r)
}
