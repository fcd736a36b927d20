package harness

import (
	"context"
	"path/filepath"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/store"
	"github.com/roach88/opflow/internal/telemetry"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_GoldenScenarios(t *testing.T) {
	for _, name := range []string{
		"changeset_confirmation",
		"isolated_partial_failure",
		"critical_declined",
		"unbound_parameter_dialog",
		"changeset_unexplained_failure",
	} {
		t.Run(name, func(t *testing.T) {
			s := loadTestScenario(t, name)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "changeset_confirmation")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, Snapshot(s.Name, first), Snapshot(s.Name, second))
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	s := loadTestScenario(t, "changeset_confirmation")
	s.Dialogs.Confirmations = []bool{false}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, `result /Orders(2): expected "fulfilled", got "skipped"`)
	// the result mismatch plus the three trace assertions
	assert.Len(t, result.Errors, 4)
}

func TestRun_ErrorExpectation(t *testing.T) {
	s := loadTestScenario(t, "critical_declined")
	s.Dialogs.Confirmations = []bool{true}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, "", result.ErrorCode)
	assert.Contains(t, result.Errors, `error: expected "USER_CANCELLED", got ""`)
	assert.Equal(t, "succeeded", result.Status)
}

func TestRun_UnknownOperation(t *testing.T) {
	s := loadTestScenario(t, "critical_declined")
	s.Operation = "OrderService.archive"
	s.Expect = Expectation{Error: "OPERATION_NOT_FOUND"}
	s.Assertions = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace)
}

func TestRun_BadServiceFile(t *testing.T) {
	s := loadTestScenario(t, "critical_declined")
	s.Service = filepath.Join(t.TempDir(), "missing.cue")

	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_BadValues(t *testing.T) {
	s := loadTestScenario(t, "changeset_confirmation")
	s.Options.Parameters = map[string]any{"Priority": 1.5}

	_, err := Run(s)
	assert.Error(t, err)
}

func TestRun_WithStoreAccumulatesJournal(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "isolated_partial_failure.yaml"))
	require.NoError(t, err)

	first, err := Run(s, WithStore(st))
	require.NoError(t, err)
	second, err := Run(s, WithStore(st))
	require.NoError(t, err)

	assert.True(t, first.Pass, "errors: %v", first.Errors)
	assert.True(t, second.Pass, "errors: %v", second.Errors)
	assert.NotEqual(t, first.InvocationID, second.InvocationID)

	list, err := st.ListInvocations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.InvocationID, list[0].ID)
	assert.Greater(t, list[0].Seq, list[1].FinishedSeq)
}

func TestRun_WithDefaultGrouping(t *testing.T) {
	s := loadTestScenario(t, "isolated_partial_failure")
	require.Empty(t, s.Options.Grouping)

	result, err := Run(s, WithDefaultGrouping(ir.GroupingChangeset))
	require.NoError(t, err)

	var invocation, submits int
	for _, ev := range result.Trace {
		switch ev.Type {
		case EventInvocation:
			invocation++
			assert.Contains(t, ev.Detail, "mode=changeset")
		case EventSubmit:
			submits++
		}
	}
	assert.Equal(t, 1, invocation)
	assert.Equal(t, 1, submits, "one changeset carries every target")
}

func TestRun_WithMetrics(t *testing.T) {
	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true})

	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "changeset_confirmation.yaml"))
	require.NoError(t, err)

	result, err := Run(s, WithMetrics(metrics))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	count, err := promtestutil.GatherAndCount(metrics.Registry(), "opflow_submissions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
