package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors, labelled by upstream target.
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Current breaker state per upstream: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_breaker_transition_total",
			Help: "Count of breaker state transitions per upstream",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_breaker_open_total",
			Help: "Number of times an upstream breaker opened",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
