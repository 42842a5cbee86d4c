package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"handoff-gateway/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the payload of the session token written by the identity
// provider integration.
type tokenClaims struct {
	jwt.RegisteredClaims
	Claims
}

// JWTReader reads claims from the session store's cookie, an HS256 JWT signed
// with a secret shared with the identity provider integration.
type JWTReader struct {
	cookieName string
	secret     []byte
	log        *logger.Logger
	now        func() time.Time
}

// NewJWTReader creates a reader for the given session cookie.
func NewJWTReader(cookieName string, secret []byte, log *logger.Logger) *JWTReader {
	return &JWTReader{
		cookieName: cookieName,
		secret:     secret,
		log:        log.WithComponent("session"),
		now:        time.Now,
	}
}

// Read returns the caller's claims, or nil when no usable session exists.
func (r *JWTReader) Read(req *http.Request) *Claims {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := r.parse(cookie.Value)
	if err != nil {
		r.log.Debug("Ignoring unusable session: %v", err)
		return nil
	}
	return claims
}

func (r *JWTReader) parse(raw string) (*Claims, error) {
	parsed := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, parsed, func(token *jwt.Token) (interface{}, error) {
		if len(r.secret) == 0 {
			return nil, errors.New("session secret not configured")
		}
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims := parsed.Claims
	if err := claims.Validate(); err != nil {
		return nil, err
	}

	// Upstream API tokens are JWTs themselves; an expired one means the
	// session can no longer call the API. Opaque tokens are accepted as is.
	if strings.Count(claims.APIToken, ".") == 2 {
		expired, err := isTokenExpiredAt(claims.APIToken, r.now())
		if err == nil && expired {
			return nil, errors.New("api token expired")
		}
	}
	return &claims, nil
}
