package engine

import (
	"context"
	"time"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/params"
)

// Submission is one network unit handed to the transport.
type Submission struct {
	InvocationID string
	GroupID      string
	Operation    string

	// Targets is empty for unbound and static operations.
	Targets []ir.EntityContext

	Parameters ir.Object

	// BindingExtras are query options for the binding ("$select", "$expand").
	BindingExtras map[string]string

	// Round is 1 for the first submission and 2 for the resubmission after
	// a strict-handling confirmation.
	Round int

	// StrictHandling asks the server to reject calls that produce warnings
	// with a confirmation-required status instead of executing them.
	StrictHandling bool
}

// Transport submits operations and reads remote paths.
//
// Submit returns a stream of per-entity results that the transport closes when
// the submission is complete. Entities missing from the stream are settled as
// transport failures. An error from Submit fails every entity of the group.
// Timeouts and generic retries are the transport's concern.
type Transport interface {
	Submit(ctx context.Context, sub Submission) (<-chan ir.EntityResult, error)
	ReadPath(ctx context.Context, path string, entity ir.EntityContext) (ir.Value, error)
}

// DialogHost renders dialogs. The engine never manages widget lifecycles; it
// only asks questions and hands over its single presentation decision.
type DialogHost interface {
	params.Dialogs
	PresentMessageList(ctx context.Context, msgs []ir.Message, opts ir.MessageListOptions)
}

// SideEffectsService refreshes dependent data after an operation succeeded.
// groupID is the changeset group of the triggering operation, or empty when
// the service should use its own request.
type SideEffectsService interface {
	ExecuteTriggerAction(ctx context.Context, name string, entity ir.EntityContext, groupID string) error
	RequestPaths(ctx context.Context, paths []string, entity ir.EntityContext, groupID string) error
}

// DescriptorResolver resolves operation descriptors (metadata.Resolver).
type DescriptorResolver interface {
	Resolve(ctx context.Context, name string, targets []ir.EntityContext) (*ir.OperationDescriptor, error)
}

// Journal records the invocation timeline (store.Store).
type Journal interface {
	BeginInvocation(ctx context.Context, rec ir.InvocationRecord) error
	RecordSubmission(ctx context.Context, rec ir.SubmissionRecord) error
	RecordOutcome(ctx context.Context, rec ir.OutcomeRecord) error
	FinishInvocation(ctx context.Context, invocationID, status string, seq int64) error
}

// Metrics receives engine counters (telemetry.Metrics).
type Metrics interface {
	InvocationStarted(operation string, mode ir.GroupingMode)
	InvocationFinished(operation, status string, elapsed time.Duration)
	SubmissionSent(operation string, round, entities int)
	ConfirmationAnswered(operation string, kind ir.ConfirmationKind, accepted bool)
	OutcomeSettled(operation, status string)
	SideEffectFailed(operation, kind string)
}

type nopMetrics struct{}

func (nopMetrics) InvocationStarted(string, ir.GroupingMode)              {}
func (nopMetrics) InvocationFinished(string, string, time.Duration)       {}
func (nopMetrics) SubmissionSent(string, int, int)                        {}
func (nopMetrics) ConfirmationAnswered(string, ir.ConfirmationKind, bool) {}
func (nopMetrics) OutcomeSettled(string, string)                          {}
func (nopMetrics) SideEffectFailed(string, string)                        {}
