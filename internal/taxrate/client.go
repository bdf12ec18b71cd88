package taxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/crossbill/internal/obs"
	"github.com/noah-isme/crossbill/internal/pricing"
	"github.com/noah-isme/crossbill/internal/resilience"
)

// DefaultEndpoint is the CDTFA rate-by-address API.
const DefaultEndpoint = "https://services.maps.cdtfa.ca.gov/api/taxrate/GetRateByAddress"

// DefaultNotFoundMessage is returned when the upstream has no usable rate and
// gives no message of its own.
const DefaultNotFoundMessage = "Could not find tax rate for the provided address."

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 1 << 20

// ErrUpstream wraps transport and decoding failures.
var ErrUpstream = errors.New("taxrate: upstream request failed")

// NotFoundError reports a well-formed upstream answer without a usable rate.
type NotFoundError struct {
	Message    string
	StatusCode int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("taxrate: no rate found (upstream status %d): %s", e.StatusCode, e.Message)
}

// Address is the location a rate is requested for.
type Address struct {
	Street string
	City   string
	Zip    string
}

// Client fetches sales tax rates from the upstream API. Each Lookup issues at
// most one upstream request. When Breaker is set, only ErrUpstream outcomes
// count as failures; a not-found answer shows the upstream is healthy.
type Client struct {
	HTTP     resilience.HTTPClient
	Breaker  *resilience.Breaker
	Endpoint string
}

// NewHTTPClient returns an http.Client with OpenTelemetry transport
// instrumentation for upstream calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Lookup returns the rate for addr as a percentage string with exactly three
// decimals, e.g. "7.250". A *NotFoundError is returned when the upstream
// answered without a usable rate; any other failure wraps ErrUpstream.
func (c Client) Lookup(ctx context.Context, addr Address) (string, error) {
	ctx, span := otel.Tracer("taxrate.Client").Start(ctx, "Client.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("taxrate.zip", addr.Zip))

	start := time.Now()
	rate, err := c.lookup(ctx, addr)
	outcome := "ok"
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		outcome = "not_found"
		span.SetAttributes(attribute.Int("http.status_code", nf.StatusCode))
	case err != nil:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream failure")
	}
	if obs.TaxRateUpstreamLatency != nil {
		obs.TaxRateUpstreamLatency.WithLabelValues(outcome).Observe(obs.DurationMillis(time.Since(start)))
	}
	return rate, err
}

func (c Client) lookup(ctx context.Context, addr Address) (string, error) {
	if c.Breaker == nil {
		return c.fetch(ctx, addr)
	}
	if err := c.Breaker.Allow(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	rate, err := c.fetch(ctx, addr)
	c.Breaker.Report(ctx, errors.Is(err, ErrUpstream))
	return rate, err
}

func (c Client) fetch(ctx context.Context, addr Address) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(addr), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response (status %d): %v", ErrUpstream, resp.StatusCode, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return "", fmt.Errorf("%w: trailing data after response (status %d)", ErrUpstream, resp.StatusCode)
	}
	return interpret(resp.StatusCode, payload)
}

// interpret maps a decoded upstream body onto a rate or a lookup error.
func interpret(status int, payload any) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("%w: empty response (status %d)", ErrUpstream, status)
	}
	body, ok := payload.(map[string]any)
	if !ok {
		return "", &NotFoundError{Message: DefaultNotFoundMessage, StatusCode: status}
	}
	if status >= 200 && status < 300 {
		if rate, ok := firstRate(body); ok {
			return rate, nil
		}
	}
	msg, _ := body["message"].(string)
	if msg == "" {
		msg = DefaultNotFoundMessage
	}
	return "", &NotFoundError{Message: msg, StatusCode: status}
}

func firstRate(body map[string]any) (string, bool) {
	records, ok := body["taxRateInfo"].([]any)
	if !ok || len(records) == 0 {
		return "", false
	}
	record, ok := records[0].(map[string]any)
	if !ok {
		return "", false
	}
	n, ok := record["rate"].(json.Number)
	if !ok {
		return "", false
	}
	return FormatPercent(string(n))
}

// FormatPercent converts a fractional rate such as "0.0725" into a
// percentage with three decimals ("7.250"), rounding half away from zero.
// Rates outside the range pricing accepts are rejected.
func FormatPercent(fraction string) (string, bool) {
	d, err := decimal.NewFromString(fraction)
	if err != nil {
		return "", false
	}
	if d.IsZero() {
		return decimal.Zero.StringFixed(3), true
	}
	if !pricing.InRange(d) {
		return "", false
	}
	return d.Shift(2).StringFixed(3), true
}

func (c Client) requestURL(addr Address) string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	query := "address=" + escape(addr.Street) + "&city=" + escape(addr.City) + "&zip=" + escape(addr.Zip)
	if strings.Contains(endpoint, "?") {
		return endpoint + "&" + query
	}
	return endpoint + "?" + query
}

// escape percent-encodes a query value, using %20 for spaces.
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
