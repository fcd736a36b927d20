package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUserCancelled is the sentinel every cancellation wraps.
// Use errors.Is(err, ErrUserCancelled) or IsCancelled.
var ErrUserCancelled = errors.New("user cancelled")

// ErrorCode categorizes orchestration errors.
type ErrorCode string

const (
	// ErrCodeOperationNotFound indicates the operation is absent from metadata.
	ErrCodeOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"

	// ErrCodeConfirmationRequired indicates the server demands confirmation.
	// Recovered by the strict-handling loop; only surfaced when a second
	// consecutive round asks again.
	ErrCodeConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"

	// ErrCodeUserCancelled indicates the user dismissed a dialog.
	ErrCodeUserCancelled ErrorCode = "USER_CANCELLED"

	// ErrCodeTransport indicates a network or server failure for one entity.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeParameterValidation indicates invalid dialog input.
	ErrCodeParameterValidation ErrorCode = "PARAMETER_VALIDATION"

	// ErrCodeInvalidRequest indicates malformed caller options.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// OperationError is the structured error type of the orchestrator.
type OperationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Operation is the operation name, if known.
	Operation string

	// Entity is the entity path for entity-level errors.
	Entity string

	// Fields maps parameter names to validation messages.
	Fields map[string]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Operation != "" && e.Entity != "" {
		fmt.Fprintf(&b, " (operation=%s, entity=%s)", e.Operation, e.Entity)
	} else if e.Operation != "" {
		fmt.Fprintf(&b, " (operation=%s)", e.Operation)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrUserCancelled) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// CodeOf returns the code of the first OperationError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsNotFound reports whether err is an operation-not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeOperationNotFound) }

// IsCancelled reports whether err is a user cancellation.
func IsCancelled(err error) bool { return errors.Is(err, ErrUserCancelled) }

// IsConfirmationRequired reports whether err is an unresolved confirmation request.
func IsConfirmationRequired(err error) bool { return hasCode(err, ErrCodeConfirmationRequired) }

// IsTransport reports whether err is an entity-level transport failure.
func IsTransport(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsParameterValidation reports whether err is a parameter validation failure.
func IsParameterValidation(err error) bool { return hasCode(err, ErrCodeParameterValidation) }

// IsInvalidRequest reports whether err is a caller options error.
func IsInvalidRequest(err error) bool { return hasCode(err, ErrCodeInvalidRequest) }

// NewNotFoundError creates the error for an operation missing from metadata.
func NewNotFoundError(operation, path string) *OperationError {
	return &OperationError{
		Code:      ErrCodeOperationNotFound,
		Message:   fmt.Sprintf("no operation metadata at %q", path),
		Operation: operation,
	}
}

// NewCancelledError creates a cancellation error for an operation.
func NewCancelledError(operation, reason string) *OperationError {
	return &OperationError{
		Code:      ErrCodeUserCancelled,
		Message:   reason,
		Operation: operation,
		Err:       ErrUserCancelled,
	}
}

// NewTransportError wraps a transport failure for one entity.
func NewTransportError(operation, entity string, err error) *OperationError {
	return &OperationError{
		Code:      ErrCodeTransport,
		Message:   "operation failed",
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

// NewConfirmationRequiredError marks an entity whose resubmission asked for
// confirmation a second time.
func NewConfirmationRequiredError(operation, entity string) *OperationError {
	return &OperationError{
		Code:      ErrCodeConfirmationRequired,
		Message:   "server still requires confirmation after resubmission",
		Operation: operation,
		Entity:    entity,
	}
}

// NewValidationError creates a parameter validation error.
func NewValidationError(operation string, fields map[string]string) *OperationError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &OperationError{
		Code:      ErrCodeParameterValidation,
		Message:   fmt.Sprintf("invalid parameters: %s", strings.Join(names, ", ")),
		Operation: operation,
		Fields:    fields,
	}
}

// NewInvalidRequestError wraps a caller options error.
func NewInvalidRequestError(operation string, err error) *OperationError {
	return &OperationError{
		Code:      ErrCodeInvalidRequest,
		Message:   "invalid invocation request",
		Operation: operation,
		Err:       err,
	}
}
