// Package metrics exposes Prometheus instruments for extraction runs. Batch
// runs dump the registry to a node-exporter textfile when they finish.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the extraction pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Reports processed by outcome: "ok", "issues", "failed"
	ReportsTotal *prometheus.CounterVec

	// Group latency including every generator attempt
	GroupLatency *prometheus.HistogramVec

	// Generator attempts by result: "ok", "transport", "empty", "malformed", "schema"
	LLMAttempts *prometheus.CounterVec

	// Gate decisions by field and outcome
	GateOutcomes *prometheus.CounterVec

	// Matcher values that replaced a generated value
	MatcherOverrides *prometheus.CounterVec
}

// New registers the instruments on reg. A nil reg uses a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mri_extract_reports_total",
			Help: "Reports processed by outcome",
		}, []string{"outcome"}),

		GroupLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mri_extract_group_duration_seconds",
			Help:    "Duration of one field group including generator retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"group"}),

		LLMAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mri_extract_llm_attempts_total",
			Help: "Structured generator attempts by result",
		}, []string{"result"}),

		GateOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mri_extract_gate_outcomes_total",
			Help: "Gate decisions applied to dependent fields",
		}, []string{"field", "outcome"}),

		MatcherOverrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mri_extract_matcher_overrides_total",
			Help: "Generated values replaced by deterministic matches",
		}, []string{"field"}),
	}
}

func (m *Metrics) IncReport(outcome string) {
	if m != nil {
		m.ReportsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveGroup records how long a field group took.
func (m *Metrics) ObserveGroup(group string, d time.Duration) {
	if m != nil {
		m.GroupLatency.WithLabelValues(group).Observe(d.Seconds())
	}
}

func (m *Metrics) IncLLMAttempt(result string) {
	if m != nil {
		m.LLMAttempts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncGate(field, outcome string) {
	if m != nil {
		m.GateOutcomes.WithLabelValues(field, outcome).Inc()
	}
}

func (m *Metrics) IncOverride(field string) {
	if m != nil {
		m.MatcherOverrides.WithLabelValues(field).Inc()
	}
}

// WriteTextfile writes the registry in the text exposition format. The file
// is written to a temporary name and renamed.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
