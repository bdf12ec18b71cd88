package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultTaxRateURL is the CDTFA rate-by-address endpoint.
const DefaultTaxRateURL = "https://services.maps.cdtfa.ca.gov/api/taxrate/GetRateByAddress"

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	SecurityHeaders    bool
	SecurityHSTS       bool
	ShutdownTimeout    time.Duration
	TaxRate            TaxRateConfig
}

// TaxRateConfig configures the upstream tax rate proxy.
type TaxRateConfig struct {
	UpstreamURL         string
	UpstreamTimeout     time.Duration
	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     parseInt64(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20),
		SecurityHeaders:    parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		SecurityHSTS:       parseBool(k.String("SECURITY_HSTS_ENABLED")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		TaxRate: TaxRateConfig{
			UpstreamURL:         valueOrDefault(strings.TrimSpace(k.String("TAXRATE_UPSTREAM_URL")), DefaultTaxRateURL),
			UpstreamTimeout:     parseDuration(k.String("TAXRATE_UPSTREAM_TIMEOUT"), "10s"),
			BreakerEnabled:      parseBool(k.String("TAXRATE_BREAKER_ENABLED")),
			BreakerMinRequests:  int(parseInt64(k.String("TAXRATE_BREAKER_MIN_REQUESTS"), 10)),
			BreakerFailureRatio: parseFloat(k.String("TAXRATE_BREAKER_FAILURE_RATIO"), 0.5),
			BreakerOpenFor:      parseDuration(k.String("TAXRATE_BREAKER_OPEN_FOR"), "30s"),
		},
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.TaxRate.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TAXRATE_UPSTREAM_URL must be an absolute http(s) url, got %q", c.TaxRate.UpstreamURL)
	}
	if c.TaxRate.UpstreamTimeout <= 0 {
		return errors.New("TAXRATE_UPSTREAM_TIMEOUT must be positive")
	}
	if c.TaxRate.BreakerFailureRatio <= 0 || c.TaxRate.BreakerFailureRatio > 1 {
		return errors.New("TAXRATE_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if c.BodyLimitBytes < 0 {
		return errors.New("HTTP_BODY_LIMIT_BYTES must not be negative")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt64(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
