package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	service, err := filepath.Abs(filepath.Join("testdata", "services", "orders.cue"))
	require.NoError(t, err)
	data, err := os.ReadFile(service)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.cue"), data, 0o644))

	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalScenario = `
name: minimal
description: "release one order"
service: orders.cue
operation: OrderService.release
targets:
  - {path: /Orders(1), type: Orders}
expect:
  results: {/Orders(1): fulfilled}
`

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "changeset_confirmation.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "changeset_confirmation", s.Name)
	assert.Equal(t, filepath.Join("testdata", "services", "orders.cue"), s.Service)
	assert.Equal(t, "OrderService.approve", s.Operation)
	require.Len(t, s.Targets, 2)
	assert.Equal(t, "/Orders(2)", s.Targets[1].Path)
	assert.Equal(t, "changeset", s.Options.Grouping)
	require.Len(t, s.Replies["/Orders(2)"], 2)
	assert.Equal(t, ir.StatusConfirmationRequired, s.Replies["/Orders(2)"][0].Status)
	assert.Equal(t, ir.SeverityWarning, s.Replies["/Orders(2)"][0].Messages[0].Severity)
	assert.Equal(t, []bool{true}, s.Dialogs.Confirmations)
	assert.Len(t, s.Assertions, 3)
}

func TestLoadScenario_ResolvesServiceRelativeToFile(t *testing.T) {
	path := writeScenario(t, minimalScenario)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "orders.cue"), s.Service)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: minimalScenario + "flow_token: x\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing description",
			body: "name: x\nservice: orders.cue\noperation: OrderService.release\n",
			want: "Description",
		},
		{
			name: "missing service file",
			body: "name: x\ndescription: d\nservice: nope.cue\noperation: OrderService.release\n",
			want: "service file not found",
		},
		{
			name: "bad grouping",
			body: minimalScenario + "options: {grouping: batched}\n",
			want: "Grouping",
		},
		{
			name: "bad reply status",
			body: minimalScenario + "replies:\n  /Orders(1):\n    - status: exploded\n",
			want: "unknown status",
		},
		{
			name: "bad expected status",
			body: "name: x\ndescription: d\nservice: orders.cue\noperation: OrderService.release\nexpect:\n  results: {/Orders(1): done}\n",
			want: "unknown status",
		},
		{
			name: "assertion without event",
			body: minimalScenario + "assertions:\n  - type: trace_count\n    count: 1\n",
			want: "trace_count requires 'event' field",
		},
		{
			name: "short trace_order",
			body: minimalScenario + "assertions:\n  - type: trace_order\n    events: [submit]\n",
			want: "at least 2 events",
		},
		{
			name: "unknown assertion",
			body: minimalScenario + "assertions:\n  - type: final_state\n",
			want: "unknown assertion type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestRun_MinimalScenario(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, minimalScenario))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "id-1", result.InvocationID)
}
