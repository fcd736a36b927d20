package ir

import "strings"

// ResultIsActiveEntityParameter is the synthetic parameter draft-enabled
// services add to activation-style actions. The call must still supply it, but
// it never makes a parameter dialog necessary.
const ResultIsActiveEntityParameter = "ResultIsActiveEntity"

// GroupingMode selects how target entities are split into network submissions.
type GroupingMode string

const (
	// GroupingIsolated submits one group per entity, drained sequentially.
	GroupingIsolated GroupingMode = "isolated"
	// GroupingChangeset submits all entities in one atomic group.
	GroupingChangeset GroupingMode = "changeset"
)

// ValidGroupingModes defines allowed grouping modes.
var ValidGroupingModes = map[GroupingMode]bool{
	GroupingIsolated:  true,
	GroupingChangeset: true,
}

// OperationKind distinguishes side-effecting actions from functions.
type OperationKind string

const (
	KindAction   OperationKind = "action"
	KindFunction OperationKind = "function"
)

// EntityContext identifies one selected entity instance.
// Path is the identity ("/Orders(1)"); Data is the client-side snapshot used
// for criticality paths and enablement checks before falling back to a read.
type EntityContext struct {
	Path       string `json:"path" yaml:"path"`
	EntityType string `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
	Data       Object `json:"data,omitempty" yaml:"-"`
}

// DefaultSource is the declared default of a parameter: either a literal or a
// path that must be read per target. At most one of the two is set.
type DefaultSource struct {
	Literal Value  `json:"literal,omitempty"`
	Path    string `json:"path,omitempty"`
}

// IsZero reports whether no default is declared.
func (d DefaultSource) IsZero() bool {
	return d.Literal == nil && d.Path == ""
}

// ParameterSpec describes one non-binding parameter of an operation.
type ParameterSpec struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Nullable bool          `json:"nullable,omitempty"`
	Default  DefaultSource `json:"default,omitempty"`
}

// SideEffects lists what must be refreshed or executed after an operation
// settles successfully for an entity. Trigger actions run before path refreshes.
type SideEffects struct {
	TriggerActions []string `json:"trigger_actions,omitempty"`
	TargetPaths    []string `json:"target_paths,omitempty"`
}

// IsEmpty reports whether no side effect is declared.
func (s SideEffects) IsEmpty() bool {
	return len(s.TriggerActions) == 0 && len(s.TargetPaths) == 0
}

// OperationDescriptor is the resolved description of one operation for one
// invocation. It is immutable once the resolver returns it.
type OperationDescriptor struct {
	Name                  string          `json:"name"`
	Kind                  OperationKind   `json:"kind"`
	IsBound               bool            `json:"is_bound"`
	IsStatic              bool            `json:"is_static"`
	IsCritical            bool            `json:"is_critical"`
	BindingParameter      string          `json:"binding_parameter,omitempty"`
	BindingType           string          `json:"binding_type,omitempty"`
	Parameters            []ParameterSpec `json:"parameters"`
	ReturnsCollection     bool            `json:"returns_collection"`
	ReturnsSameType       bool            `json:"returns_same_type"`
	DefaultValuesFunction string          `json:"default_values_function,omitempty"`
	SideEffects           SideEffects     `json:"side_effects"`
}

// UserFacingParameters returns the parameters a dialog would show, i.e. all
// parameters except the synthetic ResultIsActiveEntity flag.
func (d *OperationDescriptor) UserFacingParameters() []ParameterSpec {
	out := make([]ParameterSpec, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == ResultIsActiveEntityParameter {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Parameter looks up a parameter by name.
func (d *OperationDescriptor) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// ParameterNames returns every parameter name in declaration order.
func (d *OperationDescriptor) ParameterNames() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// ShortName returns the operation name without its namespace qualifier
// ("OrderService.approve" -> "approve").
func (d *OperationDescriptor) ShortName() string {
	if i := strings.LastIndex(d.Name, "."); i >= 0 {
		return d.Name[i+1:]
	}
	return d.Name
}

// Severity classifies a message.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is a server or client generated message.
// Target is empty for request-level messages, otherwise a path to an entity
// ("/Orders(1)") or a parameter ("/Orders(1)/OrderService.approve/Comment").
type Message struct {
	ID         string   `json:"id,omitempty" yaml:"id,omitempty"`
	Code       string   `json:"code,omitempty" yaml:"code,omitempty"`
	Text       string   `json:"text" yaml:"text"`
	Severity   Severity `json:"severity" yaml:"severity"`
	Target     string   `json:"target,omitempty" yaml:"target,omitempty"`
	Persistent bool     `json:"persistent,omitempty" yaml:"persistent,omitempty"`
}

// Key returns the message id, computing a content id when the server sent none.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	id, err := MessageID(m)
	if err != nil {
		// Strings always canonicalize; fall back to the raw text regardless.
		return m.Severity.String() + "|" + m.Target + "|" + m.Text
	}
	return id
}

func (s Severity) String() string { return string(s) }

// EntityStatus is the per-entity status a transport reports for one submission.
type EntityStatus string

const (
	// StatusSuccess means the operation executed for the entity.
	StatusSuccess EntityStatus = "success"
	// StatusConfirmationRequired means the server rejected the call under
	// strict handling and asks the user to confirm its warnings.
	StatusConfirmationRequired EntityStatus = "confirmation_required"
	// StatusFailed means the operation failed for the entity.
	StatusFailed EntityStatus = "failed"
)

// EntityResult is one entry of a transport's per-entity outcome stream.
// Entity is empty for unbound operations.
type EntityResult struct {
	Entity   string
	Status   EntityStatus
	Value    Object
	Messages []Message
	Err      error
}
