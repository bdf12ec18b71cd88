package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TaxRateLookupTotal counts tax rate proxy outcomes (ok, bad_request, not_found, upstream_error, method_not_allowed).
	TaxRateLookupTotal *prometheus.CounterVec
	// TaxRateUpstreamLatency records upstream tax rate call latency in milliseconds.
	TaxRateUpstreamLatency *prometheus.HistogramVec
	// InvoiceCalculationsTotal counts invoice calculation requests by outcome.
	InvoiceCalculationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TaxRateLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "taxrate_lookup_total",
			Help:      "Count of tax rate lookups by outcome.",
		}, []string{"result"})
		TaxRateUpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "taxrate_upstream_duration_ms",
			Help:      "Latency of upstream tax rate requests in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"outcome"})
		InvoiceCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_calculations_total",
			Help:      "Count of invoice calculation requests by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, TaxRateLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TaxRateLookupTotal = v
			}
		})
		mustRegisterCollector(reg, TaxRateUpstreamLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				TaxRateUpstreamLatency = v
			}
		})
		mustRegisterCollector(reg, InvoiceCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InvoiceCalculationsTotal = v
			}
		})
	})
}
