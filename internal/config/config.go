package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/ivankomartin/deposit-console/pkg/config"
)

// Config holds all configuration for the deposit console.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort int `env:"CONSOLE_HTTP_PORT" envDefault:"8090"`

	// Product API
	ProductsAPIURL    string  `env:"PRODUCTS_API_URL" envDefault:"http://localhost:3000"`
	APITimeoutSec     int     `env:"PRODUCTS_API_TIMEOUT_SECONDS" envDefault:"15"`
	APIMaxRetries     int     `env:"PRODUCTS_API_MAX_RETRIES" envDefault:"2"`
	APIRateLimitRPS   float64 `env:"PRODUCTS_API_RATE_LIMIT_RPS" envDefault:"20"`
	APIRateLimitBurst int     `env:"PRODUCTS_API_RATE_LIMIT_BURST" envDefault:"10"`

	// Query cache. An empty REDIS_ADDR keeps the cache in memory.
	RedisAddr         string `env:"REDIS_ADDR" envDefault:""`
	RedisPass         string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	CacheKeyPrefix    string `env:"CACHE_KEY_PREFIX" envDefault:"console"`
	ListStaleSec      int    `env:"CACHE_LIST_STALE_SECONDS" envDefault:"60"`
	ReferenceStaleSec int    `env:"CACHE_REFERENCE_STALE_SECONDS" envDefault:"600"`

	// Product list
	SearchDebounceMs int `env:"SEARCH_DEBOUNCE_MS" envDefault:"350"`
	SearchMaxPages   int `env:"SEARCH_MAX_PAGES" envDefault:"4"`
	SearchPageSize   int `env:"SEARCH_PAGE_SIZE" envDefault:"300"`
	LookupMaxPages   int `env:"LOOKUP_MAX_PAGES" envDefault:"6"`
	LookupPageSize   int `env:"LOOKUP_PAGE_SIZE" envDefault:"50"`

	// Kafka audit trail. No brokers disables publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"AUDIT_TOPIC" envDefault:"deposit.product.created"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Browser origins allowed to call /console. "*" allows any.
	CORSAllowedOrigins []string `env:"CONSOLE_CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Pprof debug endpoints (IP allowlist in CIDR notation). Empty disables them.
	PprofAllowedCIDRs []string `env:"CONSOLE_PPROF_ALLOW" envSeparator:","`

	// Slow redis command logging
	SlowCommandThresholdMs int `env:"LOG_SLOW_COMMAND_MS" envDefault:"200"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load console config: %w", err)
	}
	return cfg, nil
}

// FromMap reads configuration from environ alone, ignoring the process
// environment.
func FromMap(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load console config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values Load cannot express as struct tags.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.ProductsAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PRODUCTS_API_URL must be an absolute URL, got %q", c.ProductsAPIURL)
	}
	if c.APITimeoutSec < 1 {
		return fmt.Errorf("PRODUCTS_API_TIMEOUT_SECONDS must be positive, got %d", c.APITimeoutSec)
	}
	if c.APIMaxRetries < 0 {
		return fmt.Errorf("PRODUCTS_API_MAX_RETRIES must not be negative, got %d", c.APIMaxRetries)
	}
	if c.SearchDebounceMs < 0 {
		return fmt.Errorf("SEARCH_DEBOUNCE_MS must not be negative, got %d", c.SearchDebounceMs)
	}
	if c.SearchMaxPages < 1 || c.SearchPageSize < 1 {
		return fmt.Errorf("search budget must be positive, got %d pages of %d", c.SearchMaxPages, c.SearchPageSize)
	}
	if c.LookupMaxPages < 1 || c.LookupPageSize < 1 {
		return fmt.Errorf("lookup budget must be positive, got %d pages of %d", c.LookupMaxPages, c.LookupPageSize)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// APITimeout returns the per-request timeout for the product API.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSec) * time.Second
}

// ListStaleTime returns how long a cached product page stays fresh.
func (c *Config) ListStaleTime() time.Duration {
	return time.Duration(c.ListStaleSec) * time.Second
}

// ReferenceStaleTime returns how long cached companies and users stay fresh.
func (c *Config) ReferenceStaleTime() time.Duration {
	return time.Duration(c.ReferenceStaleSec) * time.Second
}

// SearchDebounce returns the quiet period applied to the search inputs.
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMs) * time.Millisecond
}

// AuditEnabled reports whether creation events go to Kafka.
func (c *Config) AuditEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
