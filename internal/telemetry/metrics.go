package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/opflow/internal/ir"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "opflow"

// MetricsConfig configures metrics collection.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool

	// Namespace is the metric name prefix.
	Namespace string

	// Buckets for the invocation duration histogram (default: prometheus.DefBuckets).
	Buckets []float64
}

// Metrics implements engine.Metrics on a private Prometheus registry.
type Metrics struct {
	invocationsStarted  *prometheus.CounterVec
	invocationsFinished *prometheus.CounterVec
	invocationDuration  *prometheus.HistogramVec
	activeInvocations   prometheus.Gauge

	submissions        *prometheus.CounterVec
	submittedEntities  *prometheus.CounterVec
	confirmations      *prometheus.CounterVec
	outcomes           *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors. A disabled config yields a no-op Metrics.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		invocationsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "invocations_started_total",
			Help:      "Invocations started, by operation and grouping mode.",
		}, []string{"operation", "mode"}),
		invocationsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "invocations_finished_total",
			Help:      "Invocations settled, by operation and final status.",
		}, []string{"operation", "status"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time from dispatch to settlement.",
			Buckets:   buckets,
		}, []string{"operation", "status"}),
		activeInvocations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_invocations",
			Help:      "Invocations currently executing.",
		}),

		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "submissions_total",
			Help:      "Network submissions, by operation and round.",
		}, []string{"operation", "round"}),
		submittedEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "submitted_entities_total",
			Help:      "Entities carried by submissions, by operation and round.",
		}, []string{"operation", "round"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "confirmations_total",
			Help:      "Confirmation prompts answered, by kind and answer.",
		}, []string{"operation", "kind", "accepted"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "outcomes_total",
			Help:      "Per-entity settlements, by operation and status.",
		}, []string{"operation", "status"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "side_effect_failures_total",
			Help:      "Failed side-effect requests, by operation and kind.",
		}, []string{"operation", "kind"}),
	}

	m.registry.MustRegister(
		m.invocationsStarted,
		m.invocationsFinished,
		m.invocationDuration,
		m.activeInvocations,
		m.submissions,
		m.submittedEntities,
		m.confirmations,
		m.outcomes,
		m.sideEffectFailures,
	)
	return m
}

// Enabled reports whether the metrics collect anything.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// InvocationStarted counts a dispatched invocation.
func (m *Metrics) InvocationStarted(operation string, mode ir.GroupingMode) {
	if !m.Enabled() {
		return
	}
	m.invocationsStarted.WithLabelValues(operation, string(mode)).Inc()
	m.activeInvocations.Inc()
}

// InvocationFinished records the settlement and duration of an invocation.
func (m *Metrics) InvocationFinished(operation, status string, elapsed time.Duration) {
	if !m.Enabled() {
		return
	}
	m.invocationsFinished.WithLabelValues(operation, status).Inc()
	m.invocationDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
	m.activeInvocations.Dec()
}

// SubmissionSent counts one submission and the entities it carried.
func (m *Metrics) SubmissionSent(operation string, round, entities int) {
	if !m.Enabled() {
		return
	}
	r := strconv.Itoa(round)
	m.submissions.WithLabelValues(operation, r).Inc()
	m.submittedEntities.WithLabelValues(operation, r).Add(float64(entities))
}

// ConfirmationAnswered counts a confirmation prompt and its answer.
func (m *Metrics) ConfirmationAnswered(operation string, kind ir.ConfirmationKind, accepted bool) {
	if !m.Enabled() {
		return
	}
	m.confirmations.WithLabelValues(operation, string(kind), strconv.FormatBool(accepted)).Inc()
}

// OutcomeSettled counts the final status of one entity.
func (m *Metrics) OutcomeSettled(operation, status string) {
	if !m.Enabled() {
		return
	}
	m.outcomes.WithLabelValues(operation, status).Inc()
}

// SideEffectFailed counts a failed side-effect request, by kind
// ("trigger_action" or "request_paths").
func (m *Metrics) SideEffectFailed(operation, kind string) {
	if !m.Enabled() {
		return
	}
	m.sideEffectFailures.WithLabelValues(operation, kind).Inc()
}

// Registry returns the private registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WriteSummary prints one line per counter and gauge series, and the count
// and sum of each histogram series, sorted by name. Nothing is written when
// disabled.
func (m *Metrics) WriteSummary(w io.Writer) error {
	if !m.Enabled() {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			pairs := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			labels := ""
			if len(pairs) > 0 {
				labels = "{" + strings.Join(pairs, ",") + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labels, metric.GetCounter().GetValue()))
			case metric.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", mf.GetName(), labels, metric.GetGauge().GetValue()))
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count%s %d", mf.GetName(), labels, h.GetSampleCount()),
					fmt.Sprintf("%s_sum%s %g", mf.GetName(), labels, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
