package handoff

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCookieFactory() CookieFactory {
	return CookieFactory{
		Domain:         "example.org",
		Secure:         true,
		TTL:            5 * time.Minute,
		SessionCookies: []string{"__Secure-session-token", "session-token"},
	}
}

func TestCookieFactory(t *testing.T) {
	f := testCookieFactory()

	t.Run("Stage", func(t *testing.T) {
		c := f.Stage(CookieToken, "abc")
		assert.Equal(t, "mpdx-handoff.token", c.Name)
		assert.Equal(t, "abc", c.Value)
		assert.Equal(t, 300, c.MaxAge)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, "/", c.Path)
	})

	t.Run("DefaultTTL", func(t *testing.T) {
		c := CookieFactory{}.Stage(CookieToken, "abc")
		assert.Equal(t, 300, c.MaxAge)
	})

	t.Run("LoggedIn", func(t *testing.T) {
		c := f.LoggedIn()
		assert.Equal(t, "true", c.Value)
		assert.Equal(t, "example.org", c.Domain)
		assert.False(t, c.HttpOnly)
		assert.Zero(t, c.MaxAge)
	})

	t.Run("ClearWritesMaxAgeZero", func(t *testing.T) {
		rec := httptest.NewRecorder()
		http.SetCookie(rec, CookieFactory{}.Clear("__Secure-session-token"))
		header := rec.Header().Get("Set-Cookie")
		assert.Contains(t, header, "Max-Age=0")
		assert.Contains(t, header, "Secure")
	})

	t.Run("ClearLoggedInKeepsDomain", func(t *testing.T) {
		c := f.Clear(CookieLoggedIn)
		assert.Equal(t, "example.org", c.Domain)
		assert.False(t, c.HttpOnly)
	})

	t.Run("InvalidateSession", func(t *testing.T) {
		cookies := f.InvalidateSession()
		require.Len(t, cookies, 2)
		for _, c := range cookies {
			assert.Negative(t, c.MaxAge)
		}
	})
}

func TestCookieBatchDeduplicates(t *testing.T) {
	f := testCookieFactory()
	batch := &CookieBatch{}
	batch.Add(
		f.Stage(CookieRedirectURL, "first"),
		f.Stage(CookieToken, "t"),
		f.Stage(CookieRedirectURL, "second"),
		f.Stage(CookieImpersonate, "i"),
	)

	cookies := batch.Cookies()
	require.Len(t, cookies, 3)
	assert.Equal(t, CookieRedirectURL, cookies[0].Name)
	assert.Equal(t, "second", cookies[0].Value)
	assert.Equal(t, CookieToken, cookies[1].Name)
	assert.Equal(t, CookieImpersonate, cookies[2].Name)
	assert.Equal(t, 3, batch.Len())

	rec := httptest.NewRecorder()
	batch.Write(rec)
	headers := rec.Header().Values("Set-Cookie")
	require.Len(t, headers, 3)
	assert.True(t, strings.HasPrefix(headers[0], CookieRedirectURL+"=second"))
}

func TestCookieBatchNil(t *testing.T) {
	var batch *CookieBatch
	assert.Nil(t, batch.Cookies())
	assert.Zero(t, batch.Len())
}
