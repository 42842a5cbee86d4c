// Package signedvalue signs short-lived boolean flags so they can be trusted
// when they come back from client-controlled storage such as cookies.
package signedvalue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrEmptySecret is returned by NewCodec when no signing secret is configured.
var ErrEmptySecret = errors.New("signing secret is required")

// Codec signs and verifies values of the form "value.expiresAt.signature".
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec returns a Codec keyed with secret. All processes of a deployment
// must share the same secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign returns value signed with an expiry ttlSeconds from now.
// A non-positive ttl produces a value that is already expired.
func (c *Codec) Sign(value bool, ttlSeconds int) string {
	now := c.now().Unix()
	expiresAt := now + int64(ttlSeconds)
	if ttlSeconds <= 0 && expiresAt >= now {
		expiresAt = now - 1
	}

	payload := strconv.FormatBool(value) + "." + strconv.FormatInt(expiresAt, 10)
	return payload + "." + c.signature(payload)
}

// Verify returns the signed literal ("true" or "false") and true when signed
// carries a valid signature and has not expired. Tampering and expiry are
// reported the same way.
func (c *Codec) Verify(signed string) (string, bool) {
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		return "", false
	}
	value, rawExpiry, signature := parts[0], parts[1], parts[2]

	expiresAt, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return "", false
	}
	if expiresAt < c.now().Unix() {
		return "", false
	}

	expected := c.signature(value + "." + rawExpiry)
	if len(expected) != len(signature) {
		return "", false
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", false
	}
	return value, true
}

func (c *Codec) signature(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
