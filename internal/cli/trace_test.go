package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/store"
)

// journaledInvocation runs the partial-failure scenario into a fresh
// database and returns the database path and invocation id.
func journaledInvocation(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "opflow.db")
	_, err := execute(t, "run", partialScenario, "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	list, err := st.ListInvocations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return dbPath, list[0].ID
}

func TestTrace_MissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, "trace", "--invocation", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTrace_NonExistentDatabase(t *testing.T) {
	_, err := execute(t, "trace", "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_InvalidKind(t *testing.T) {
	_, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "x.db"), "--kind", "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid kind "sync"`)
}

func TestTrace_EmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "opflow.db")

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No invocations journaled.")

	out, err = execute(t, "trace", "--db", dbPath, "--invocation", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "No invocation found: missing")

	out, err = execute(t, "--format", "json", "trace", "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Status string `json:"status"`
		Data   []any  `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)
}

func TestTrace_ListInvocations(t *testing.T) {
	dbPath, id := journaledInvocation(t)

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "OrderService.release  mode=isolated  targets=3  status=partial")
}

func TestTrace_Timeline(t *testing.T) {
	dbPath, id := journaledInvocation(t)

	out, err := execute(t, "trace", "--db", dbPath, "--invocation", id)
	require.NoError(t, err)

	assert.Contains(t, out, "Invocation: "+id)
	assert.Contains(t, out, "Operation: OrderService.release (mode=isolated)")
	assert.Contains(t, out, "Status: partial")
	assert.Contains(t, out, "invocation OrderService.release mode=isolated targets=/Orders(1),/Orders(2),/Orders(3)")
	assert.Contains(t, out, "outcome    entity=/Orders(2) status=rejected messages=1")
	assert.Contains(t, out, "finish     status=partial")
	assert.Contains(t, out, "Stats: 3 submission(s), 1 round(s), 3 outcome(s)\n")
}

func TestTrace_KindFilterJSON(t *testing.T) {
	dbPath, id := journaledInvocation(t)

	out, err := execute(t, "--format", "json", "trace", "--db", dbPath, "--invocation", id, "--kind", "submission")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, id, resp.Data.Invocation.ID)
	require.Len(t, resp.Data.Timeline, 3)
	for _, e := range resp.Data.Timeline {
		assert.Equal(t, "submission", e.Kind)
	}
	assert.Equal(t, TraceStats{Submissions: 3, Rounds: 1, Outcomes: 3, IsFinished: true}, resp.Data.Stats)
}
