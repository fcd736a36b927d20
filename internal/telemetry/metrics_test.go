package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/engine"
	"github.com/roach88/opflow/internal/ir"
)

var _ engine.Metrics = (*Metrics)(nil)

func TestNewMetrics_Disabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	assert.False(t, m.Enabled())
	assert.Nil(t, m.Registry())
	assert.NotPanics(t, func() {
		m.InvocationStarted("OrderService.approve", ir.GroupingIsolated)
		m.InvocationFinished("OrderService.approve", "succeeded", time.Second)
		m.SubmissionSent("OrderService.approve", 1, 2)
		m.ConfirmationAnswered("OrderService.approve", ir.ConfirmCritical, true)
		m.OutcomeSettled("OrderService.approve", "fulfilled")
		m.SideEffectFailed("OrderService.approve", "trigger_action")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	require.True(t, m.Enabled())

	m.InvocationStarted("OrderService.approve", ir.GroupingChangeset)
	m.SubmissionSent("OrderService.approve", 1, 3)
	m.SubmissionSent("OrderService.approve", 2, 1)
	m.ConfirmationAnswered("OrderService.approve", ir.ConfirmStrictHandling, true)
	m.OutcomeSettled("OrderService.approve", "fulfilled")
	m.OutcomeSettled("OrderService.approve", "fulfilled")
	m.OutcomeSettled("OrderService.approve", "rejected")
	m.SideEffectFailed("OrderService.approve", "request_paths")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocationsStarted.WithLabelValues("OrderService.approve", "changeset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeInvocations))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.submittedEntities.WithLabelValues("OrderService.approve", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("OrderService.approve", "2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("OrderService.approve", "strict_handling", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("OrderService.approve", "fulfilled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("OrderService.approve", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sideEffectFailures.WithLabelValues("OrderService.approve", "request_paths")))

	m.InvocationFinished("OrderService.approve", "partial", 20*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeInvocations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocationsFinished.WithLabelValues("OrderService.approve", "partial")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.invocationDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	m.OutcomeSettled("OrderService.release", "fulfilled")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `test_outcomes_total{operation="OrderService.release",status="fulfilled"} 1`), body)
}

func TestMetrics_WriteSummary(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, Namespace: "test"})
	m.InvocationStarted("OrderService.approve", ir.GroupingChangeset)
	m.InvocationFinished("OrderService.approve", "succeeded", 500*time.Millisecond)

	var buf strings.Builder
	require.NoError(t, m.WriteSummary(&buf))

	assert.Equal(t, strings.Join([]string{
		"test_active_invocations 0",
		"test_invocation_duration_seconds_count{operation=OrderService.approve,status=succeeded} 1",
		"test_invocation_duration_seconds_sum{operation=OrderService.approve,status=succeeded} 0.5",
		"test_invocations_finished_total{operation=OrderService.approve,status=succeeded} 1",
		"test_invocations_started_total{mode=changeset,operation=OrderService.approve} 1",
	}, "\n")+"\n", buf.String())

	var empty strings.Builder
	require.NoError(t, NewMetrics(MetricsConfig{}).WriteSummary(&empty))
	assert.Empty(t, empty.String())
}
