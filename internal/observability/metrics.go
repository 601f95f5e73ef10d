// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fee-token-lab/internal/domain"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "fee_token_lab"

// Metrics holds all Prometheus metrics for the harness.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Scenario metrics
	StepsTotal *prometheus.CounterVec
	RunsTotal  *prometheus.CounterVec

	// Reconciliation metrics
	SamplesTotal   *prometheus.CounterVec
	DeviationRatio prometheus.Gauge

	// Trade metrics
	TradeResults *prometheus.CounterVec

	// Latency metrics
	RemoteCallDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "steps_total",
			Help:      "Total number of scenario steps by step and result",
		}, []string{"step", "result"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "runs_total",
			Help:      "Total number of scenario runs by status",
		}, []string{"status"}),

		SamplesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "mcap_samples_total",
			Help:      "Total number of market cap samples by tolerance outcome",
		}, []string{"within"}),
		DeviationRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "mcap_deviation_ratio",
			Help:      "Relative deviation of the on-chain market cap from the reference in the last sample",
		}),

		TradeResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "results_total",
			Help:      "Total number of trade operations by operation and outcome",
		}, []string{"op", "kind"}),

		RemoteCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Remote contract call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"op"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordStep records a finished scenario step.
func (m *Metrics) RecordStep(r domain.StepResult) {
	if m == nil {
		return
	}
	result := "fail"
	switch {
	case r.Skipped:
		result = "skipped"
	case r.Passed:
		result = "pass"
	}
	m.StepsTotal.WithLabelValues(string(r.Step), result).Inc()
}

// RecordRun records a finished scenario run.
func (m *Metrics) RecordRun(passed bool) {
	if m == nil {
		return
	}
	status := "fail"
	if passed {
		status = "pass"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}

// RecordSample records a market cap sample.
func (m *Metrics) RecordSample(s *domain.MarketCapSample) {
	if m == nil || s == nil {
		return
	}
	within := "false"
	if s.WithinTolerance {
		within = "true"
	}
	m.SamplesTotal.WithLabelValues(within).Inc()
	m.DeviationRatio.Set(s.Deviation())
}

// RecordTrade records a trade outcome; kind is the error kind or "OK".
func (m *Metrics) RecordTrade(op, kind string) {
	if m == nil {
		return
	}
	m.TradeResults.WithLabelValues(op, kind).Inc()
}

// ObserveRemoteCall records remote call latency.
func (m *Metrics) ObserveRemoteCall(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
