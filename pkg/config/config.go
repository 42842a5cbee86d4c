package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Handoff  HandoffConfig  `mapstructure:"handoff"`
	Session  SessionConfig  `mapstructure:"session"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig holds TLS/SSL configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// HandoffConfig holds the cross-site handoff settings
type HandoffConfig struct {
	LegacyHost    string        `mapstructure:"legacy_host"` // host name of the legacy application
	SiteURL       string        `mapstructure:"site_url"`    // root URL of this application
	SigningSecret string        `mapstructure:"signing_secret"`
	CookieDomain  string        `mapstructure:"cookie_domain"`
	CookieTTL     time.Duration `mapstructure:"cookie_ttl"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

// SessionConfig describes the identity provider's session store
type SessionConfig struct {
	CookieName    string   `mapstructure:"cookie_name"`
	Secret        string   `mapstructure:"secret"`
	ClearCookies  []string `mapstructure:"clear_cookies"`  // cookies removed to force re-authentication
	CallbackToken string   `mapstructure:"callback_token"` // bearer token for the session-establishment callback
}

// UpstreamConfig holds the upstream API endpoints
type UpstreamConfig struct {
	APIURL  string        `mapstructure:"api_url"`  // GraphQL endpoint
	RestURL string        `mapstructure:"rest_url"` // REST base URL for impersonation
	Timeout time.Duration `mapstructure:"timeout"`  // per-request deadline applied by handlers

	// Outgoing request budget shared by every handler
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
	RateBurst int     `mapstructure:"rate_burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	RateLimit  int        `mapstructure:"rate_limit"` // requests per minute on impersonation endpoints
	BurstLimit int        `mapstructure:"burst_limit"`
	CORS       CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)

	// Allow environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("HANDOFF")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			// Config file not found; use defaults and env vars
			fmt.Printf("Warning: Config file not found at %s, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	// Handoff defaults
	v.SetDefault("handoff.cookie_ttl", "5m")
	v.SetDefault("handoff.secure_cookies", true)

	// Session store defaults
	v.SetDefault("session.cookie_name", "__Secure-session-token")
	v.SetDefault("session.clear_cookies", []string{"__Secure-session-token", "session-token"})

	// Upstream defaults
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.rate_limit", 100)
	v.SetDefault("upstream.rate_burst", 200)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// API defaults
	v.SetDefault("api.rate_limit", 30)
	v.SetDefault("api.burst_limit", 10)
	v.SetDefault("api.cors.allowed_origins", []string{})
	v.SetDefault("api.cors.allow_credentials", true)
	v.SetDefault("api.cors.max_age", 86400)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// overrideWithEnvVars overrides config with specific environment variables
func overrideWithEnvVars(v *viper.Viper) {
	// Deployment environment variables that should always override config
	envMappings := map[string]string{
		"LEGACY_HOST":    "handoff.legacy_host",
		"SITE_URL":       "handoff.site_url",
		"SIGNING_SECRET": "handoff.signing_secret",
		"COOKIE_DOMAIN":  "handoff.cookie_domain",
		"SESSION_SECRET": "session.secret",
		"CALLBACK_TOKEN": "session.callback_token",
		"API_URL":        "upstream.api_url",
		"REST_API_URL":   "upstream.rest_url",
		"LOG_LEVEL":      "logging.level",
		"GIN_MODE":       "server.mode",
		"PORT":           "server.port",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Handoff.LegacyHost == "" {
		return fmt.Errorf("legacy host is required")
	}
	if strings.Contains(config.Handoff.LegacyHost, "/") {
		return fmt.Errorf("legacy host must be a host name, not a URL")
	}

	if config.Handoff.SiteURL == "" {
		return fmt.Errorf("site URL is required")
	}
	if u, err := url.Parse(config.Handoff.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site URL must be an absolute URL")
	}
	config.Handoff.SiteURL = strings.TrimRight(config.Handoff.SiteURL, "/")

	if config.Handoff.SigningSecret == "" {
		return fmt.Errorf("signing secret is required")
	}
	if len(config.Handoff.SigningSecret) < 32 {
		return fmt.Errorf("signing secret must be at least 32 characters")
	}

	if config.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if config.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if len(config.Session.CallbackToken) < 16 {
		return fmt.Errorf("session callback token must be at least 16 characters")
	}

	if config.Upstream.APIURL == "" {
		return fmt.Errorf("upstream API URL is required")
	}
	if config.Upstream.RestURL == "" {
		return fmt.Errorf("upstream REST API URL is required")
	}

	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if config.Handoff.CookieTTL <= 0 {
		config.Handoff.CookieTTL = 5 * time.Minute
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Mode == "debug" || c.Server.Mode == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "release" || c.Server.Mode == "production"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// SanitizeForLogging returns a copy of the config with sensitive data redacted
func (c *Config) SanitizeForLogging() *Config {
	sanitized := *c

	if sanitized.Handoff.SigningSecret != "" {
		sanitized.Handoff.SigningSecret = "[REDACTED]"
	}

	if sanitized.Session.Secret != "" {
		sanitized.Session.Secret = "[REDACTED]"
	}

	if sanitized.Session.CallbackToken != "" {
		sanitized.Session.CallbackToken = "[REDACTED]"
	}

	return &sanitized
}
