package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/opflow/internal/harness"
	"github.com/roach88/opflow/internal/store"
	"github.com/roach88/opflow/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Scenario string          `json:"scenario"`
	Result   *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its outcome",
		Long: `Run a scenario against its service definition with the scripted transport
and dialog answers, then print the interaction trace, the per-entity results,
the presentation decision and the journaled status.

With --db (or journal.path in the config) the invocation is journaled to that
SQLite database and can be inspected later with "opflow trace".

Exit codes:
  0 - Scenario passed
  1 - Expectations or assertions failed
  2 - Command error (unreadable scenario, bad service definition, etc.)

Examples:
  opflow run ./scenarios/changeset_confirmation.yaml
  opflow run ./scenarios/critical_declined.yaml --db ./opflow.db
  opflow run ./scenarios/critical_declined.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal to this SQLite database")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Journal.Path
	}
	runOpts, metrics, cleanup, err := harnessOptions(opts.RootOptions, dbPath)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Debug("running scenario", "scenario", scenario.Name, "path", path, "journal", dbPath)
	result, err := harness.RunContext(ctx, scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		out := RunOutput{Scenario: scenario.Name, Result: result}
		if result.Pass {
			if err := writeOK(w, out); err != nil {
				return err
			}
		} else {
			err := writeJSON(w, CLIResponse{
				Status: "error",
				Data:   out,
				Error:  &CLIError{Code: CodeScenarioFailed, Message: "scenario failed", Details: result.Errors},
			})
			if err != nil {
				return err
			}
		}
	} else {
		writeRunText(w, scenario.Name, result)
		if metrics.Enabled() {
			fmt.Fprintln(w, "metrics:")
			if err := metrics.WriteSummary(indentWriter{w}); err != nil {
				return err
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, name string, result *harness.Result) {
	_, _ = w.Write(harness.Snapshot(name, result))
	if result.InvocationID != "" {
		fmt.Fprintf(w, "invocation: %s\n", result.InvocationID)
	}
	if result.Pass {
		fmt.Fprintln(w, "✓ pass")
		return
	}
	fmt.Fprintln(w, "✗ fail")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// harnessOptions builds the run options shared by run and test: the
// configured grouping default, metrics, a logger and, when dbPath is set, a
// journal database. cleanup closes the database.
func harnessOptions(opts *RootOptions, dbPath string) ([]harness.RunOption, *telemetry.Metrics, func(), error) {
	metrics := telemetry.NewMetrics(opts.Config.MetricsSettings())
	runOpts := []harness.RunOption{
		harness.WithLogger(opts.logger()),
		harness.WithMetrics(metrics),
	}
	if mode := opts.Config.GroupingMode(); mode != "" {
		runOpts = append(runOpts, harness.WithDefaultGrouping(mode))
	}
	if dbPath == "" {
		return runOpts, metrics, func() {}, nil
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			opts.logger().Error("error closing database", "error", err)
		}
	}
	return append(runOpts, harness.WithStore(st)), metrics, cleanup, nil
}

// indentWriter prefixes every write with two spaces. Writes are whole lines.
type indentWriter struct {
	w io.Writer
}

func (iw indentWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(iw.w, "  "); err != nil {
		return 0, err
	}
	return iw.w.Write(p)
}
