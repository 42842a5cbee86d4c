package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when a token does not have three segments.
	ErrMalformedToken = errors.New("token must have three segments")
	// ErrNoExpiry is returned when a token payload carries no exp claim.
	ErrNoExpiry = errors.New("token has no exp claim")
)

// IsTokenExpired decodes the payload of token without verifying its signature
// and reports whether its exp claim lies in the past. It returns an error when
// the middle segment is not decodable JSON.
func IsTokenExpired(token string) (bool, error) {
	return isTokenExpiredAt(token, time.Now())
}

func isTokenExpiredAt(token string, now time.Time) (bool, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false, ErrMalformedToken
	}

	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode token payload: %w", err)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return false, fmt.Errorf("decode token payload: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, fmt.Errorf("read exp claim: %w", err)
	}
	if exp == nil {
		return false, ErrNoExpiry
	}
	return exp.Unix() < now.Unix(), nil
}
