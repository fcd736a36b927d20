package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opflow/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter   string // scenario file name glob, without extension
	Database string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-path>",
		Short: "Run a directory of scenarios",
		Long: `Run every scenario file (.yaml, .yml) under a directory, or a single file,
and report which passed.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  opflow test ./scenarios
  opflow test ./scenarios --filter "changeset_*"
  opflow test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal every scenario to this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, root string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(root); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios path not found: %s", root))
	}
	paths, err := harness.FindScenarios(root)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	runOpts, _, cleanup, err := harnessOptions(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer cleanup()

	opts.logger().Debug("running scenarios", "path", root, "count", len(paths))
	result, err := harness.RunSuite(ctx, paths, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}

	if opts.Format == "json" {
		if result.Failed > 0 {
			if err := writeJSON(cmd.OutOrStdout(), CLIResponse{
				Status: "error",
				Data:   result,
				Error:  &CLIError{Code: CodeTestFailed, Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)},
			}); err != nil {
				return err
			}
		} else if err := writeOK(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		writeTestText(cmd, paths, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// filterScenarios keeps the paths whose base name, without extension,
// matches the glob.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var out []string
	for _, p := range paths {
		base := filepath.Base(p)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, p)
		}
	}
	return out, nil
}

func writeTestText(cmd *cobra.Command, paths []string, result *harness.SuiteResult) {
	w := cmd.OutOrStdout()
	if result.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	failures := make(map[string]harness.ScenarioFailure, len(result.Failures))
	for _, f := range result.Failures {
		failures[f.ScenarioPath] = f
	}
	for _, p := range paths {
		f, failed := failures[p]
		if !failed {
			fmt.Fprintf(w, "✓ %s\n", p)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", p)
		fmt.Fprintf(w, "  %s\n", f.Error)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
