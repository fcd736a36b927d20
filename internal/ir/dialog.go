package ir

// ConfirmationKind tells the dialog host why a yes/no question is asked.
type ConfirmationKind string

const (
	// ConfirmCritical asks before running an operation flagged critical.
	ConfirmCritical ConfirmationKind = "critical"
	// ConfirmStrictHandling asks whether to resubmit after the server
	// returned warnings under strict handling.
	ConfirmStrictHandling ConfirmationKind = "strict_handling"
)

// ConfirmationRequest is the payload of a yes/no confirmation.
type ConfirmationRequest struct {
	Kind      ConfirmationKind
	Operation string
	Entities  []string  // entity paths the answer applies to
	Messages  []Message // server warnings (strict handling only)
}

// ParameterDialogRequest is the payload of a parameter dialog.
// FieldMessages are shown next to their parameter; Warnings above the form.
type ParameterDialogRequest struct {
	Operation     *OperationDescriptor
	Targets       []EntityContext
	Prefill       Object
	FieldMessages []Message
	Warnings      []Message
}

// DialogResult is what the host returns from a parameter dialog.
// Confirmed=false means the user dismissed the dialog.
type DialogResult struct {
	Values    Object
	Confirmed bool
}

// MessageListOptions tells the host how to show aggregated messages.
type MessageListOptions struct {
	// Inline requests a single message box instead of a list dialog.
	Inline bool
	// Title is a short heading, usually the operation name.
	Title string
}
