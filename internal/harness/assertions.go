package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the full
// trace to make the failure readable without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Detail)
	}
	return buf.String()
}

// eventMatches reports whether event has type typ and its detail contains
// match (an empty match accepts any detail).
func eventMatches(event TraceEvent, typ, match string) bool {
	return event.Type == typ && strings.Contains(event.Detail, match)
}

// parseEventSpec splits "type:substring" into its parts.
func parseEventSpec(spec string) (string, string) {
	typ, match, _ := strings.Cut(spec, ":")
	return typ, match
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if eventMatches(event, a.Event, a.Match) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s event matching %q", a.Event, a.Match),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events occur in order; other events may
// occur in between. Each spec matches the first event after the previous
// match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, spec := range a.Events {
		typ, match := parseEventSpec(spec)
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if eventMatches(event, typ, match) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual:   fmt.Sprintf("no %q after the previous match", spec),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if eventMatches(event, a.Event, a.Match) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s event matching %q %d time(s)", a.Event, a.Match, a.Count),
			Actual:   fmt.Sprintf("found %d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion against the result's trace and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err.Error()))
		}
	}
	return errs
}
