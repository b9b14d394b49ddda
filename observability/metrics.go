package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics records engine activity for the metrics endpoint.
type MarketMetrics struct {
	Operations       *prometheus.CounterVec
	Errors           *prometheus.CounterVec
	Latency          *prometheus.HistogramVec
	AccountsAbsorbed prometheus.Counter
	Reserves         prometheus.Gauge
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// Metrics returns the lazily-initialised market metrics registry.
func Metrics() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "baselend",
				Subsystem: "market",
				Name:      "operations_total",
				Help:      "Total market operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "baselend",
				Subsystem: "market",
				Name:      "errors_total",
				Help:      "Total market operation errors segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "baselend",
				Subsystem: "market",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for market operation handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			AccountsAbsorbed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "baselend",
				Subsystem: "market",
				Name:      "accounts_absorbed_total",
				Help:      "Total accounts liquidated through absorption.",
			}),
			Reserves: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "baselend",
				Subsystem: "market",
				Name:      "base_reserves",
				Help:      "Protocol base-asset reserves in base units.",
			}),
		}
	})
	return marketRegistry
}

// Register attaches the market collectors to the provided registry.
func (m *MarketMetrics) Register(registry *prometheus.Registry) {
	registry.MustRegister(m.Operations, m.Errors, m.Latency, m.AccountsAbsorbed, m.Reserves)
}
