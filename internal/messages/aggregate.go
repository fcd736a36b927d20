// Package messages turns per-entity outcomes and the messages collected for an
// invocation into a single presentation decision. It never presents anything
// itself; the dialog host acts on the returned Decision.
package messages

import (
	"github.com/roach88/opflow/internal/ir"
)

// ChangesetFailedText is the synthetic message prepended when a changeset
// failed without any message addressed to its failing entities.
const ChangesetFailedText = "Some operations in the set could not be completed."

// ChangesetFailedCode identifies the synthetic changeset message.
const ChangesetFailedCode = "CHANGESET_FAILED"

// DecisionKind is how the dialog host should present the messages.
type DecisionKind string

const (
	// DecisionNone presents nothing.
	DecisionNone DecisionKind = "none"
	// DecisionInline shows a single message box, no list dialog.
	DecisionInline DecisionKind = "inline"
	// DecisionAttached leaves a single entity message attached to the
	// editable entity, shown where the entity is displayed.
	DecisionAttached DecisionKind = "attached"
	// DecisionList opens the message list dialog.
	DecisionList DecisionKind = "list"
)

// Outcome is the settlement of one entity as far as presentation cares.
type Outcome struct {
	Entity string
	Failed bool
}

// PresentationContext describes where the messages will be shown.
type PresentationContext struct {
	Operation           string
	ParameterNames      []string
	ParameterDialogOpen bool
	Editable            bool
	Mode                ir.GroupingMode
}

// Decision is the aggregator's single presentation decision.
type Decision struct {
	Kind DecisionKind `json:"kind"`
	// Messages are presented according to Kind.
	Messages []ir.Message `json:"messages,omitempty"`
	// FieldMessages belong next to parameter dialog fields; they are never
	// part of Messages while the dialog is open.
	FieldMessages []ir.Message `json:"field_messages,omitempty"`
	// Synthesized reports whether the changeset message was added.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Classification splits messages by what they address.
type Classification struct {
	Unbound   []ir.Message
	Parameter []ir.Message
	Entity    []ir.Message
}

// Classify sorts messages into request-level ("unbound"), parameter-dialog
// targeted and entity targeted ones, keeping input order within each class.
func Classify(msgs []ir.Message, pc PresentationContext) Classification {
	var c Classification
	for _, m := range msgs {
		switch {
		case m.Target == "":
			c.Unbound = append(c.Unbound, m)
		case isParameterTargeted(m, pc):
			c.Parameter = append(c.Parameter, m)
		default:
			c.Entity = append(c.Entity, m)
		}
	}
	return c
}

func isParameterTargeted(m ir.Message, pc PresentationContext) bool {
	_, ok := ir.ParameterOfTarget(m.Target, pc.Operation, pc.ParameterNames)
	return ok
}

// Aggregate decides how msgs are presented for the given outcomes.
//
// processed holds the keys of messages already surfaced for this invocation;
// they are skipped and every message kept is added to it. A nil processed set
// only deduplicates within this call.
func Aggregate(outcomes []Outcome, msgs []ir.Message, pc PresentationContext, processed map[string]bool) Decision {
	seen := processed
	if seen == nil {
		seen = make(map[string]bool)
	}

	var fresh []ir.Message
	for _, m := range msgs {
		key := m.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, m)
	}

	var d Decision
	var shown []ir.Message
	for _, m := range fresh {
		if pc.ParameterDialogOpen && isParameterTargeted(m, pc) {
			d.FieldMessages = append(d.FieldMessages, m)
			continue
		}
		shown = append(shown, m)
	}

	if pc.Mode == ir.GroupingChangeset && needsChangesetMessage(outcomes, fresh) {
		synthetic := ir.Message{
			Code:     ChangesetFailedCode,
			Text:     ChangesetFailedText,
			Severity: ir.SeverityError,
		}
		if key := synthetic.Key(); !seen[key] {
			seen[key] = true
			shown = append([]ir.Message{synthetic}, shown...)
			d.Synthesized = true
		}
	}

	d.Messages = shown
	switch {
	case len(shown) == 0:
		d.Kind = DecisionNone
	case len(shown) > 1:
		d.Kind = DecisionList
	case shown[0].Target == "":
		d.Kind = DecisionInline
	case pc.Editable:
		d.Kind = DecisionAttached
	default:
		d.Kind = DecisionInline
	}
	return d
}

// needsChangesetMessage reports whether some entity failed and no message
// explains any failing entity.
func needsChangesetMessage(outcomes []Outcome, msgs []ir.Message) bool {
	var failed []string
	for _, o := range outcomes {
		if o.Failed {
			failed = append(failed, o.Entity)
		}
	}
	if len(failed) == 0 {
		return false
	}
	for _, m := range msgs {
		for _, entity := range failed {
			if entity != "" && ir.TargetsEntity(m.Target, entity) {
				return false
			}
		}
	}
	return true
}
