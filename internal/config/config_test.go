package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crossbill/internal/config"
)

// blank clears every variable Load reads so the host environment cannot leak in.
func blank(overrides map[string]string) map[string]string {
	env := map[string]string{
		"APP_ENV":                       "",
		"PORT":                          "",
		"CORS_ALLOWED_ORIGINS":          "",
		"HTTP_BODY_LIMIT_BYTES":         "",
		"SECURITY_HEADERS_ENABLED":      "",
		"SECURITY_HSTS_ENABLED":         "",
		"SHUTDOWN_TIMEOUT":              "",
		"TAXRATE_UPSTREAM_URL":          "",
		"TAXRATE_UPSTREAM_TIMEOUT":      "",
		"TAXRATE_BREAKER_ENABLED":       "",
		"TAXRATE_BREAKER_MIN_REQUESTS":  "",
		"TAXRATE_BREAKER_FAILURE_RATIO": "",
		"TAXRATE_BREAKER_OPEN_FOR":      "",
	}
	for k, v := range overrides {
		env[k] = v
	}
	return env
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(blank(nil))
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	require.EqualValues(t, 1<<20, cfg.BodyLimitBytes)
	require.True(t, cfg.SecurityHeaders)
	require.False(t, cfg.SecurityHSTS)
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	require.False(t, cfg.IsProduction())

	require.Equal(t, config.DefaultTaxRateURL, cfg.TaxRate.UpstreamURL)
	require.Equal(t, 10*time.Second, cfg.TaxRate.UpstreamTimeout)
	require.False(t, cfg.TaxRate.BreakerEnabled)
	require.Equal(t, 10, cfg.TaxRate.BreakerMinRequests)
	require.Equal(t, 0.5, cfg.TaxRate.BreakerFailureRatio)
	require.Equal(t, 30*time.Second, cfg.TaxRate.BreakerOpenFor)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(blank(map[string]string{
		"APP_ENV":                       "production",
		"PORT":                          ":9090",
		"CORS_ALLOWED_ORIGINS":          "https://a.example, https://b.example ,",
		"HTTP_BODY_LIMIT_BYTES":         "2048",
		"SECURITY_HEADERS_ENABLED":      "off",
		"SECURITY_HSTS_ENABLED":         "yes",
		"TAXRATE_UPSTREAM_URL":          "http://localhost:9999/rates",
		"TAXRATE_UPSTREAM_TIMEOUT":      "2s",
		"TAXRATE_BREAKER_ENABLED":       "true",
		"TAXRATE_BREAKER_MIN_REQUESTS":  "4",
		"TAXRATE_BREAKER_FAILURE_RATIO": "0.75",
		"TAXRATE_BREAKER_OPEN_FOR":      "1m",
	}))
	require.NoError(t, err)

	require.True(t, cfg.IsProduction())
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.EqualValues(t, 2048, cfg.BodyLimitBytes)
	require.False(t, cfg.SecurityHeaders)
	require.True(t, cfg.SecurityHSTS)
	require.Equal(t, "http://localhost:9999/rates", cfg.TaxRate.UpstreamURL)
	require.Equal(t, 2*time.Second, cfg.TaxRate.UpstreamTimeout)
	require.True(t, cfg.TaxRate.BreakerEnabled)
	require.Equal(t, 4, cfg.TaxRate.BreakerMinRequests)
	require.Equal(t, 0.75, cfg.TaxRate.BreakerFailureRatio)
	require.Equal(t, time.Minute, cfg.TaxRate.BreakerOpenFor)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	cfg, err := config.LoadForTests(blank(map[string]string{
		"TAXRATE_UPSTREAM_TIMEOUT":     "soon",
		"HTTP_BODY_LIMIT_BYTES":        "lots",
		"TAXRATE_BREAKER_MIN_REQUESTS": "many",
	}))
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.TaxRate.UpstreamTimeout)
	require.EqualValues(t, 1<<20, cfg.BodyLimitBytes)
	require.Equal(t, 10, cfg.TaxRate.BreakerMinRequests)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"relative url":  {"TAXRATE_UPSTREAM_URL": "/api/taxrate"},
		"ftp url":       {"TAXRATE_UPSTREAM_URL": "ftp://example.com/rates"},
		"ratio too big": {"TAXRATE_BREAKER_FAILURE_RATIO": "1.5"},
		"zero ratio":    {"TAXRATE_BREAKER_FAILURE_RATIO": "0"},
		"zero timeout":  {"TAXRATE_UPSTREAM_TIMEOUT": "0s"},
		"negative body": {"HTTP_BODY_LIMIT_BYTES": "-1"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadForTests(blank(overrides))
			require.Error(t, err)
		})
	}
}
