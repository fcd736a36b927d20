package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opflow/internal/ir"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
	assert.Empty(t, c.Journal.Path)
	assert.Equal(t, ir.GroupingIsolated, c.GroupingMode())
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, "opflow", c.Metrics.Namespace)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: DEBUG
  format: json
journal:
  path: /tmp/opflow.db
invocation:
  grouping: changeset
metrics:
  enabled: true
  namespace: orders
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Logging().Format)
	assert.Equal(t, "/tmp/opflow.db", c.Journal.Path)
	assert.Equal(t, ir.GroupingChangeset, c.GroupingMode())
	assert.True(t, c.MetricsSettings().Enabled)
	assert.Equal(t, "orders", c.MetricsSettings().Namespace)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "invocation:\n  grouping: changeset\n")
	t.Setenv("OPFLOW_INVOCATION_GROUPING", "isolated")
	t.Setenv("OPFLOW_JOURNAL_PATH", ":memory:")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ir.GroupingIsolated, c.GroupingMode())
	assert.Equal(t, ":memory:", c.Journal.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"grouping", "invocation:\n  grouping: batched\n"},
		{"level", "log:\n  level: loud\n"},
		{"format", "log:\n  format: xml\n"},
		{"namespace", "metrics:\n  enabled: true\n  namespace: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
