package engine

import (
	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/messages"
)

// Status is the settled outcome of one entity.
type Status string

const (
	// StatusFulfilled means the operation ran for the entity.
	StatusFulfilled Status = "fulfilled"
	// StatusRejected means the operation failed for the entity; Err says why.
	StatusRejected Status = "rejected"
	// StatusSkipped means the user declined the strict-handling confirmation.
	// It is not an error.
	StatusSkipped Status = "skipped"
	// StatusCancelled means the invocation was cancelled before the entity
	// was submitted.
	StatusCancelled Status = "cancelled"
)

// Result is the outcome of one entity, or of an unbound operation.
type Result struct {
	Entity   string       `json:"entity,omitempty"`
	Status   Status       `json:"status"`
	Value    ir.Object    `json:"value,omitempty"`
	Messages []ir.Message `json:"messages,omitempty"`
	Err      error        `json:"-"`
}

// Response is what an invocation resolves to.
type Response struct {
	InvocationID string `json:"invocation_id"`
	// Results are in target order.
	Results []Result `json:"results"`
	// Multiple is true when the operation was invoked on more than one target.
	Multiple bool `json:"multiple"`
	// Decision is the single presentation decision handed to the dialog host.
	Decision messages.Decision `json:"decision"`
	// Enablement holds the recomputed operation enablement, when requested.
	Enablement map[string]bool `json:"enablement,omitempty"`
	// DialogShown reports whether a parameter dialog was presented.
	DialogShown bool `json:"dialog_shown"`
}

// Value returns a Result for single-target and unbound invocations and a
// []Result for multi-target invocations.
func (r *Response) Value() any {
	if r.Multiple {
		return r.Results
	}
	return r.Results[0]
}

// Single returns the only result of a single-target or unbound invocation.
func (r *Response) Single() (Result, bool) {
	if r.Multiple || len(r.Results) != 1 {
		return Result{}, false
	}
	return r.Results[0], true
}

// Failed reports whether any entity was rejected.
func (r *Response) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusRejected {
			return true
		}
	}
	return false
}
