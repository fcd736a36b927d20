package harness

// Trace event types.
const (
	EventConfirm    = "confirm"
	EventDialog     = "dialog"
	EventInvocation = "invocation"
	EventSubmit     = "submit"
	EventOutcome    = "outcome"
	EventSideEffect = "side_effect"
	EventMessages   = "messages"
	EventFinish     = "finish"
)

// TraceEvent is one recorded interaction, in call order.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// EntityOutcome is the settled status of one entity.
type EntityOutcome struct {
	Entity string `json:"entity"` // "-" for unbound
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	InvocationID string          `json:"invocation_id,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Outcomes     []EntityOutcome `json:"outcomes,omitempty"`
	Decision     string          `json:"decision,omitempty"`
	Messages     []string        `json:"messages,omitempty"`
	Enablement   map[string]bool `json:"enablement,omitempty"`

	// Status is the journaled final status.
	Status string `json:"status,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
