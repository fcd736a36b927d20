package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/opflow/internal/engine"
	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/testutil"
)

// Scenario is one scripted invocation with its expected outcome.
type Scenario struct {
	// Name uniquely identifies the scenario; it names the golden file.
	Name string `yaml:"name" validate:"required"`

	// Description explains what the scenario checks.
	Description string `yaml:"description" validate:"required"`

	// Service is the CUE service definition, relative to the scenario file.
	Service string `yaml:"service" validate:"required"`

	// Operation is the qualified operation name.
	Operation string `yaml:"operation" validate:"required"`

	// Targets are the selected entities; none means an unbound invocation.
	Targets []TargetSpec `yaml:"targets,omitempty" validate:"dive"`

	Options OptionsSpec `yaml:"options,omitempty"`

	// Paths script the transport's ReadPath answers.
	Paths []PathSpec `yaml:"paths,omitempty" validate:"dive"`

	// Replies script per-entity submission outcomes, consumed one per round.
	// The unbound outcome is keyed by the empty string.
	Replies map[string][]testutil.Reply `yaml:"replies,omitempty"`

	// FailSubmissions fails the n-th submission (1-based) as a whole.
	FailSubmissions map[int]string `yaml:"fail_submissions,omitempty"`

	// SideEffectFailures fails side-effect requests for an entity.
	SideEffectFailures map[string]string `yaml:"side_effect_failures,omitempty"`

	Dialogs DialogScript `yaml:"dialogs,omitempty"`

	// UserDefaults pre-populates the user-default cache per operation.
	UserDefaults map[string]map[string]any `yaml:"user_defaults,omitempty"`

	Expect Expectation `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TargetSpec is one selected entity.
type TargetSpec struct {
	Path string         `yaml:"path" validate:"required"`
	Type string         `yaml:"type,omitempty"`
	Data map[string]any `yaml:"data,omitempty"`
}

// OptionsSpec mirrors engine.Options in YAML.
type OptionsSpec struct {
	Grouping          string            `yaml:"grouping,omitempty" validate:"omitempty,oneof=isolated changeset"`
	Parameters        map[string]any    `yaml:"parameters,omitempty"`
	StartupParameters map[string]any    `yaml:"startup_parameters,omitempty"`
	CreationFlow      bool              `yaml:"creation_flow,omitempty"`
	Editable          bool              `yaml:"editable,omitempty"`
	TriggerActions    []string          `yaml:"trigger_actions,omitempty"`
	TargetPaths       []string          `yaml:"target_paths,omitempty"`
	Enablement        map[string]string `yaml:"enablement,omitempty"`
	BindingExtras     map[string]string `yaml:"binding_extras,omitempty"`
}

// PathSpec scripts one ReadPath answer. An empty entity matches any entity.
type PathSpec struct {
	Entity string `yaml:"entity,omitempty"`
	Path   string `yaml:"path" validate:"required"`
	Value  any    `yaml:"value"`
}

// DialogScript holds the dialog host's answers in order. Running out of
// parameter answers dismisses the dialog; running out of confirmations
// declines.
type DialogScript struct {
	Parameters    []DialogAnswer `yaml:"parameters,omitempty"`
	Confirmations []bool         `yaml:"confirmations,omitempty"`
}

// DialogAnswer is one answer to a parameter dialog.
type DialogAnswer struct {
	Confirmed bool           `yaml:"confirmed"`
	Values    map[string]any `yaml:"values,omitempty"`
}

// Expectation is checked against the invocation's response.
type Expectation struct {
	// Error is the expected error code (e.g. USER_CANCELLED); empty expects
	// no error.
	Error string `yaml:"error,omitempty"`

	// Results maps entity paths ("-" for unbound) to their settled status.
	Results map[string]string `yaml:"results,omitempty"`

	// Decision is the expected presentation kind.
	Decision string `yaml:"decision,omitempty" validate:"omitempty,oneof=none inline attached list"`

	// Messages are the expected presented message texts, in order.
	Messages []string `yaml:"messages,omitempty"`

	Enablement map[string]bool `yaml:"enablement,omitempty"`

	// Status is the journaled final status of the invocation.
	Status string `yaml:"status,omitempty" validate:"omitempty,oneof=succeeded failed partial cancelled"`
}

// Assertion checks the recorded trace.
type Assertion struct {
	// Type is trace_contains, trace_order or trace_count.
	Type string `yaml:"type"`

	// Event is the trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Match is a substring the event detail must contain (optional).
	Match string `yaml:"match,omitempty"`

	// Events is the expected event order (trace_order), each "type" or
	// "type:substring".
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and validates a scenario file, resolving the service
// path relative to the file. Unknown fields are rejected so typos surface.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Service != "" && !filepath.IsAbs(scenario.Service) {
		scenario.Service = filepath.Join(filepath.Dir(path), scenario.Service)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

var validate = validator.New()

func validateScenario(s *Scenario) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if _, err := os.Stat(s.Service); err != nil {
		return fmt.Errorf("service file not found: %s", s.Service)
	}
	for entity, replies := range s.Replies {
		for i, r := range replies {
			switch r.Status {
			case "", ir.StatusSuccess, ir.StatusConfirmationRequired, ir.StatusFailed:
			default:
				return fmt.Errorf("replies[%q][%d]: unknown status %q", entity, i, r.Status)
			}
		}
	}
	for entity, status := range s.Expect.Results {
		switch engine.Status(status) {
		case engine.StatusFulfilled, engine.StatusRejected, engine.StatusSkipped, engine.StatusCancelled:
		default:
			return fmt.Errorf("expect.results[%q]: unknown status %q", entity, status)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: trace_contains requires 'event' field", index)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("assertions[%d]: trace_order requires at least 2 events", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: trace_count requires 'event' field", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: trace_count requires non-negative 'count'", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
