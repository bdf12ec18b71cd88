package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var breakerNopLogger = zerolog.Nop()

// ErrOpenCircuit is returned by Allow while the breaker is open.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a Breaker. Zero values fall back to 10 requests,
// a 0.5 failure ratio and a 30s cool-off.
type BreakerSettings struct {
	Target       string
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Logger       *zerolog.Logger
}

// Breaker guards one upstream. Outcomes are counted in fixed windows of
// MinRequests; a window whose failure ratio reaches FailureRatio opens the
// breaker for OpenFor. The first request after the cool-off runs half-open and
// its outcome closes or reopens the breaker.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerSettings
	state    State
	failures int
	total    int
	openedAt time.Time
}

// NewBreaker returns a closed breaker and publishes its state gauge.
func NewBreaker(s BreakerSettings) *Breaker {
	if s.MinRequests <= 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = 0.5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	s.Target = strings.TrimSpace(s.Target)
	if s.Target == "" {
		s.Target = "default"
	}
	b := &Breaker{cfg: s}
	b.publishState()
	return b
}

// Allow returns ErrOpenCircuit while the breaker is open and the cool-off has
// not elapsed.
func (b *Breaker) Allow(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	if time.Since(b.openedAt) < b.cfg.OpenFor {
		return ErrOpenCircuit
	}
	b.transition(ctx, HalfOpen)
	return nil
}

// Report records the outcome of an allowed request. Only upstream failures
// should be reported as failed.
func (b *Breaker) Report(ctx context.Context, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if failed {
			b.transition(ctx, Open)
		} else {
			b.transition(ctx, Closed)
		}
		return
	}

	b.total++
	if failed {
		b.failures++
	}
	if b.total < b.cfg.MinRequests {
		return
	}
	if float64(b.failures)/float64(b.total) >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
		return
	}
	b.failures, b.total = 0, 0
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.failures, b.total = 0, 0
	if next == Open {
		b.openedAt = time.Now()
	}
	b.publishState()

	target := b.cfg.Target
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(target, prev.String(), next.String()).Inc()
	}
	if next == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
	evt := b.loggerFor(ctx).Info().Str("target", target).Str("from_state", prev.String()).Str("to_state", next.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishState() {
	if BreakerState != nil {
		BreakerState.WithLabelValues(b.cfg.Target).Set(float64(b.state))
	}
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.cfg.Logger == nil {
		return &breakerNopLogger
	}
	return b.cfg.Logger
}
