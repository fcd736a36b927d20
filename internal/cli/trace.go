package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Invocation string
	Kind       string // optional timeline kind filter
	Limit      int
}

// TraceResult is the JSON payload for one invocation.
type TraceResult struct {
	Invocation ir.InvocationSummary  `json:"invocation"`
	Timeline   []store.TimelineEntry `json:"timeline"`
	Stats      TraceStats            `json:"stats"`
}

// TraceStats summarizes a journaled invocation.
type TraceStats struct {
	Submissions int  `json:"submissions"`
	Rounds      int  `json:"rounds"`
	Outcomes    int  `json:"outcomes"`
	IsFinished  bool `json:"is_finished"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of an invocation",
		Long: `Print the journaled timeline of an invocation: the invocation itself, every
submission per group and round, every settled entity outcome and the final
status, in logical-clock order.

Without --invocation the most recent invocations are listed.

Examples:
  opflow trace --db ./opflow.db
  opflow trace --db ./opflow.db --invocation 0192f3e4-...
  opflow trace --db ./opflow.db --invocation 0192f3e4-... --kind submission
  opflow trace --db ./opflow.db --invocation 0192f3e4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Invocation, "invocation", "", "invocation id to trace")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show entries of this kind (invocation|submission|outcome|finish)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of invocations to list")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch opts.Kind {
	case "", "invocation", "submission", "outcome", "finish":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q", opts.Kind))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Invocation == "" {
		return listInvocations(ctx, opts, st, cmd)
	}

	inv, err := st.Invocation(ctx, opts.Invocation)
	if errors.Is(err, store.ErrNotFound) {
		if opts.Format == "json" {
			return writeOK(cmd.OutOrStdout(), TraceResult{Timeline: []store.TimelineEntry{}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No invocation found: %s\n", opts.Invocation)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read invocation", err)
	}

	timeline, err := st.Timeline(ctx, opts.Invocation)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build timeline", err)
	}

	result := TraceResult{
		Invocation: inv,
		Timeline:   filterTimeline(timeline, opts.Kind),
		Stats:      traceStats(timeline),
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), result)
	}
	writeTraceText(cmd, result)
	return nil
}

func listInvocations(ctx context.Context, opts *TraceOptions, st *store.Store, cmd *cobra.Command) error {
	list, err := st.ListInvocations(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list invocations", err)
	}
	if list == nil {
		list = []ir.InvocationSummary{}
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), list)
	}

	w := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(w, "No invocations journaled.")
		return nil
	}
	for _, inv := range list {
		fmt.Fprintf(w, "%s  seq=%d  %s  mode=%s  targets=%d  status=%s\n",
			inv.ID, inv.Seq, inv.Operation, inv.Mode, len(inv.Targets), inv.Status)
	}
	return nil
}

func filterTimeline(timeline []store.TimelineEntry, kind string) []store.TimelineEntry {
	if kind == "" {
		return timeline
	}
	out := []store.TimelineEntry{}
	for _, e := range timeline {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func traceStats(timeline []store.TimelineEntry) TraceStats {
	var stats TraceStats
	for _, e := range timeline {
		switch e.Kind {
		case "submission":
			stats.Submissions++
			for _, field := range strings.Fields(e.Detail) {
				v, ok := strings.CutPrefix(field, "round=")
				if !ok {
					continue
				}
				if round, err := strconv.Atoi(v); err == nil && round > stats.Rounds {
					stats.Rounds = round
				}
			}
		case "outcome":
			stats.Outcomes++
		case "finish":
			stats.IsFinished = true
		}
	}
	return stats
}

func writeTraceText(cmd *cobra.Command, result TraceResult) {
	w := cmd.OutOrStdout()
	inv := result.Invocation

	fmt.Fprintf(w, "Invocation: %s\n", inv.ID)
	fmt.Fprintf(w, "Operation: %s (mode=%s)\n", inv.Operation, inv.Mode)
	fmt.Fprintf(w, "Status: %s\n", inv.Status)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-10s %s\n", e.Seq, e.Kind, e.Detail)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Stats: %d submission(s), %d round(s), %d outcome(s)", result.Stats.Submissions, result.Stats.Rounds, result.Stats.Outcomes)
	if !result.Stats.IsFinished {
		fmt.Fprint(w, ", not finished")
	}
	fmt.Fprintln(w)
}
