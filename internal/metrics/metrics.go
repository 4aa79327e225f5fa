// Package metrics holds the Prometheus collectors for shopmem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PriceChecks counts evaluated watch items.
	PriceChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopmem_price_checks_total",
		Help: "Total number of watch items price-checked",
	})

	// PriceCheckFailures counts items whose price source failed.
	PriceCheckFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopmem_price_check_failures_total",
		Help: "Total number of watch items whose price could not be fetched",
	})

	// PriceAlerts counts emitted alerts by type.
	PriceAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmem_price_alerts_total",
		Help: "Total number of price alerts emitted by type",
	}, []string{"type"})

	// BudgetBreaches counts threshold crossings.
	BudgetBreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopmem_budget_breaches_total",
		Help: "Total number of monthly budget threshold crossings",
	})

	// Consolidations counts consolidation runs.
	Consolidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopmem_consolidations_total",
		Help: "Total number of memory consolidation runs",
	})

	// GenerationFailures counts degraded assistant responses by reason.
	GenerationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmem_generation_failures_total",
		Help: "Total number of text-generation failures by reason",
	}, []string{"reason"}) // reason: "unavailable" or "malformed"

	// GenerationLatency tracks text-generation round trips.
	GenerationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shopmem_generation_duration_seconds",
		Help:    "Text-generation request latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
