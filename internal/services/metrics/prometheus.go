package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports counters and histograms under the scholarpay
// namespace.
type PrometheusCollector struct {
	operationDuration *prometheus.HistogramVec
	operationResults  *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	errors            *prometheus.CounterVec
	charges           *prometheus.CounterVec
	chargedMinorUnits *prometheus.CounterVec
	settlements       *prometheus.CounterVec
}

// NewPrometheusCollector registers its vectors on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scholarpay",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution of checkout and settlement operations",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		operationResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "operation_results_total",
			Help:      "Operation outcomes, labeled by result",
		}, []string{"operation", "result"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups, labeled by hit or miss",
		}, []string{"cache", "outcome"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "errors_total",
			Help:      "Errors by operation and kind",
		}, []string{"operation", "kind"}),
		charges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "checkout_sessions_total",
			Help:      "Checkout sessions submitted to the processor",
		}, []string{"fee_type", "rail"}),
		chargedMinorUnits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "checkout_gross_minor_units_total",
			Help:      "Sum of gross amounts requested, in minor units of the rail currency",
		}, []string{"fee_type", "rail"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarpay",
			Name:      "settlements_total",
			Help:      "Verification outcomes by fee type",
		}, []string{"fee_type", "outcome"}),
	}
}

func (p *PrometheusCollector) RecordOperationDuration(operation string, d time.Duration) {
	p.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordOperationResult(operation, result string) {
	p.operationResults.WithLabelValues(operation, result).Inc()
}

func (p *PrometheusCollector) RecordCacheHit(cache string) {
	p.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (p *PrometheusCollector) RecordCacheMiss(cache string) {
	p.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (p *PrometheusCollector) RecordError(operation, kind string) {
	p.errors.WithLabelValues(operation, kind).Inc()
}

func (p *PrometheusCollector) RecordCharge(feeType, rail string, grossMinorUnits int64) {
	p.charges.WithLabelValues(feeType, rail).Inc()
	p.chargedMinorUnits.WithLabelValues(feeType, rail).Add(float64(grossMinorUnits))
}

func (p *PrometheusCollector) RecordSettlement(feeType, outcome string) {
	p.settlements.WithLabelValues(feeType, outcome).Inc()
}
