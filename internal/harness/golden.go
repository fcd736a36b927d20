package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the stable text compared against golden
// files: the trace in call order, then the settled outcome.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	if result.ErrorCode != "" {
		fmt.Fprintf(&b, "error: %s\n", result.ErrorCode)
	}

	b.WriteString("trace:\n")
	for _, e := range result.Trace {
		fmt.Fprintf(&b, "  %d %s %s\n", e.Seq, e.Type, e.Detail)
	}

	if len(result.Outcomes) > 0 {
		b.WriteString("results:\n")
		for _, o := range result.Outcomes {
			if o.Code != "" {
				fmt.Fprintf(&b, "  %s %s %s\n", o.Entity, o.Status, o.Code)
			} else {
				fmt.Fprintf(&b, "  %s %s\n", o.Entity, o.Status)
			}
		}
	}
	if result.Decision != "" {
		fmt.Fprintf(&b, "decision: %s\n", result.Decision)
	}
	for _, m := range result.Messages {
		fmt.Fprintf(&b, "  - %s\n", m)
	}
	if len(result.Enablement) > 0 {
		names := make([]string, 0, len(result.Enablement))
		for n := range result.Enablement {
			names = append(names, n)
		}
		sort.Strings(names)
		b.WriteString("enablement:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "  %s=%t\n", n, result.Enablement[n])
		}
	}
	if result.Status != "" {
		fmt.Fprintf(&b, "status: %s\n", result.Status)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
