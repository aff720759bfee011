package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/akaushop/storefront/pkg/config"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`

	// Shop REST backend
	ShopAPIBaseURL    string `env:"SHOP_API_BASE_URL,required,notEmpty"`
	UpstreamTimeoutMs int    `env:"UPSTREAM_TIMEOUT_MS" envDefault:"10000"`
	UpstreamRetries   int    `env:"UPSTREAM_MAX_RETRIES" envDefault:"2"`
	SubmitTimeoutMs   int    `env:"ORDER_SUBMIT_TIMEOUT_MS" envDefault:"15000"`

	// Circuit breaker settings for shop backend calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Sessions
	SessionTTLMinutes      int    `env:"SESSION_TTL_MINUTES" envDefault:"120"`
	AdminSessionTTLMinutes int    `env:"ADMIN_SESSION_TTL_MINUTES" envDefault:"30"`
	SessionCookieName      string `env:"SESSION_COOKIE_NAME" envDefault:"sf_session"`
	SessionCookieSecure    bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Checkout
	CheckoutRequirePhone bool `env:"CHECKOUT_REQUIRE_PHONE" envDefault:"true"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Rate limiting (requests per second per session or client IP)
	RateLimitRPS          float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst        int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	SubmitRateLimitPerMin int     `env:"SUBMIT_RATE_LIMIT_PER_MINUTE" envDefault:"6"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from a local .env file, if present, and the
// environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.ShopAPIBaseURL = strings.TrimRight(cfg.ShopAPIBaseURL, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.ParseRequestURI(c.ShopAPIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid SHOP_API_BASE_URL %q", c.ShopAPIBaseURL)
	}
	if c.UpstreamTimeoutMs <= 0 || c.SubmitTimeoutMs <= 0 {
		return fmt.Errorf("upstream timeouts must be positive")
	}
	if c.UpstreamRetries < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RETRIES must not be negative, got %d", c.UpstreamRetries)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be at least 1, got %d", c.SessionTTLMinutes)
	}
	if c.AdminSessionTTLMinutes < 1 {
		return fmt.Errorf("ADMIN_SESSION_TTL_MINUTES must be at least 1, got %d", c.AdminSessionTTLMinutes)
	}
	if c.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME is required")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 || c.SubmitRateLimitPerMin < 1 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// UpstreamTimeout returns the per-request timeout for shop backend calls.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMs) * time.Millisecond
}

// SubmitTimeout bounds a single order submission.
func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutMs) * time.Millisecond
}

// SessionTTL is how long an idle storefront session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// AdminSessionTTL is how long an admin unlock lasts.
func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionTTLMinutes) * time.Minute
}
