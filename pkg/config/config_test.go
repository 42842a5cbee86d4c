package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  port: "9090"
handoff:
  legacy_host: legacy.example.org
  site_url: https://app.example.org/
  signing_secret: 0123456789abcdef0123456789abcdef
  cookie_domain: .example.org
session:
  secret: session-secret
  callback_token: callback-token-0123456789
upstream:
  api_url: https://api.example.org/graphql
  rest_url: https://api.example.org/api/v2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "legacy.example.org", cfg.Handoff.LegacyHost)
	assert.Equal(t, "https://app.example.org", cfg.Handoff.SiteURL, "trailing slash is trimmed")
	assert.Equal(t, 5*time.Minute, cfg.Handoff.CookieTTL)
	assert.True(t, cfg.Handoff.SecureCookies)
	assert.Equal(t, []string{"__Secure-session-token", "session-token"}, cfg.Session.ClearCookies)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 100.0, cfg.Upstream.RateLimit)
	assert.Equal(t, 200, cfg.Upstream.RateBurst)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "0.0.0.0:9090", cfg.GetServerAddress())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LEGACY_HOST", "legacy.env.org")
	t.Setenv("SIGNING_SECRET", "ffffffffffffffffffffffffffffffffff")

	cfg, err := LoadConfig(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "legacy.env.org", cfg.Handoff.LegacyHost)
	assert.Equal(t, "ffffffffffffffffffffffffffffffffff", cfg.Handoff.SigningSecret)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing legacy host", func(c *Config) { c.Handoff.LegacyHost = "" }},
		{"legacy host is a URL", func(c *Config) { c.Handoff.LegacyHost = "https://legacy.example.org" }},
		{"relative site url", func(c *Config) { c.Handoff.SiteURL = "/app" }},
		{"short secret", func(c *Config) { c.Handoff.SigningSecret = "short" }},
		{"missing session secret", func(c *Config) { c.Session.Secret = "" }},
		{"missing callback token", func(c *Config) { c.Session.CallbackToken = "" }},
		{"short callback token", func(c *Config) { c.Session.CallbackToken = "short" }},
		{"missing api url", func(c *Config) { c.Upstream.APIURL = "" }},
		{"missing rest url", func(c *Config) { c.Upstream.RestURL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateConfig(validConfig()))
	})
}

func TestSanitizeForLogging(t *testing.T) {
	cfg := validConfig()
	sanitized := cfg.SanitizeForLogging()

	assert.Equal(t, "[REDACTED]", sanitized.Session.CallbackToken)

	assert.Equal(t, "[REDACTED]", sanitized.Handoff.SigningSecret)
	assert.Equal(t, "[REDACTED]", sanitized.Session.Secret)
	assert.NotEqual(t, "[REDACTED]", cfg.Handoff.SigningSecret, "original is untouched")
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Handoff: HandoffConfig{
			LegacyHost:    "legacy.example.org",
			SiteURL:       "https://app.example.org",
			SigningSecret: "0123456789abcdef0123456789abcdef",
		},
		Session:  SessionConfig{CookieName: "session", Secret: "s", CallbackToken: "callback-token-0123456789"},
		Upstream: UpstreamConfig{APIURL: "https://api/graphql", RestURL: "https://api/v2"},
	}
}
