package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/opflow/internal/ir"
	"github.com/roach88/opflow/internal/messages"
	"github.com/roach88/opflow/internal/params"
)

// Options are the caller's per-invocation options.
type Options struct {
	// Parameters are explicit parameter values. When they cover every
	// parameter no parameter dialog is shown.
	Parameters ir.Object `json:"parameters,omitempty" yaml:"-"`

	// StartupParameters and CreationFlow carry values from an
	// object-creation flow.
	StartupParameters ir.Object `json:"startup_parameters,omitempty" yaml:"-"`
	CreationFlow      bool      `json:"creation_flow,omitempty" yaml:"creation_flow,omitempty"`

	// Grouping overrides the invoker's default grouping mode.
	Grouping ir.GroupingMode `json:"grouping,omitempty" yaml:"grouping,omitempty" validate:"omitempty,oneof=isolated changeset"`

	// Editable reports whether the targets are shown in an editable context.
	Editable bool `json:"editable,omitempty" yaml:"editable,omitempty"`

	// SideEffects are requested in addition to the operation's declared ones.
	SideEffects ir.SideEffects `json:"side_effects,omitempty" yaml:"side_effects,omitempty"`

	// Enablement maps operation names to boolean paths re-read after success.
	Enablement map[string]string `json:"enablement,omitempty" yaml:"enablement,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`

	// BindingExtras are passed through to every submission.
	BindingExtras map[string]string `json:"binding_extras,omitempty" yaml:"binding_extras,omitempty" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// InvocationRequest is the state of one caller call, created once and
// threaded by pointer through grouping, retry and side effects.
type InvocationRequest struct {
	ID            string
	Operation     *ir.OperationDescriptor
	Targets       []ir.EntityContext
	Values        ir.Object
	Mode          ir.GroupingMode
	SideEffects   ir.SideEffects
	BindingExtras map[string]string
	Enablement    map[string]string
	Editable      bool
	State         *StrictHandlingState
}

// Invoker is the caller-facing orchestrator.
//
// Thread-safety: an Invoker may serve concurrent invocations as long as they
// do not target the same entity; every invocation owns its own
// InvocationRequest and StrictHandlingState.
type Invoker struct {
	resolver    DescriptorResolver
	transport   Transport
	dialogs     DialogHost
	collector   *params.Collector
	sideEffects SideEffectsService
	journal     Journal
	metrics     Metrics
	ids         IDGenerator
	seq         *JournalSeq
	defaultMode ir.GroupingMode
	logger      *slog.Logger
	validate    *validator.Validate

	collectorOpts []params.Option
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithSideEffects sets the side-effects service.
func WithSideEffects(s SideEffectsService) Option {
	return func(inv *Invoker) { inv.sideEffects = s }
}

// WithJournal records every invocation in j.
func WithJournal(j Journal) Option {
	return func(inv *Invoker) { inv.journal = j }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(inv *Invoker) { inv.metrics = m }
}

// WithIDGenerator sets the invocation and group id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(inv *Invoker) { inv.ids = g }
}

// WithJournalSeq continues journal numbering, e.g. from
// ResumeJournalSeq(store.MaxSeq()).
func WithJournalSeq(s *JournalSeq) Option {
	return func(inv *Invoker) { inv.seq = s }
}

// WithDefaultGrouping sets the mode used when Options.Grouping is empty.
// Default: isolated.
func WithDefaultGrouping(mode ir.GroupingMode) Option {
	return func(inv *Invoker) { inv.defaultMode = mode }
}

// WithLogger sets the logger for the invoker and its parameter collector.
func WithLogger(l *slog.Logger) Option {
	return func(inv *Invoker) { inv.logger = l }
}

// WithUserDefaults enables the cached user-default source.
func WithUserDefaults(u params.UserDefaults) Option {
	return func(inv *Invoker) {
		inv.collectorOpts = append(inv.collectorOpts, params.WithUserDefaults(u))
	}
}

// WithExtension registers a default-value extension for an operation.
func WithExtension(operation string, ext params.Extension) Option {
	return func(inv *Invoker) {
		inv.collectorOpts = append(inv.collectorOpts, params.WithExtension(operation, ext))
	}
}

// New creates an Invoker.
func New(resolver DescriptorResolver, transport Transport, dialogs DialogHost, opts ...Option) *Invoker {
	inv := &Invoker{
		resolver:    resolver,
		transport:   transport,
		dialogs:     dialogs,
		metrics:     nopMetrics{},
		ids:         UUIDv7Generator{},
		seq:         &JournalSeq{},
		defaultMode: ir.GroupingIsolated,
		logger:      slog.Default(),
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(inv)
	}

	collectorOpts := append([]params.Option{
		params.WithPathReader(transport),
		params.WithLogger(inv.logger),
	}, inv.collectorOpts...)
	inv.collector = params.NewCollector(dialogs, collectorOpts...)
	return inv
}

// InvokeBound invokes a bound operation on targets.
//
// Response.Value() is a Result for a single target and a []Result of
// len(targets) otherwise. A dismissed dialog or declined critical
// confirmation returns (nil, err) with ir.IsCancelled(err): the operation did
// not run. Entity-level failures are reported in the results, not as err.
//
// Precondition: no target has another invocation in flight.
func (inv *Invoker) InvokeBound(ctx context.Context, name string, targets []ir.EntityContext, opts Options) (*Response, error) {
	return inv.invoke(ctx, name, targets, opts)
}

// InvokeUnbound invokes an unbound (or static) operation. The response holds
// exactly one Result.
func (inv *Invoker) InvokeUnbound(ctx context.Context, name string, opts Options) (*Response, error) {
	return inv.invoke(ctx, name, nil, opts)
}

// Describe resolves the descriptor of an operation without invoking it.
func (inv *Invoker) Describe(ctx context.Context, name string, targets []ir.EntityContext) (*ir.OperationDescriptor, error) {
	return inv.resolver.Resolve(ctx, name, targets)
}

func (inv *Invoker) invoke(ctx context.Context, name string, targets []ir.EntityContext, opts Options) (*Response, error) {
	if err := inv.validate.Struct(opts); err != nil {
		return nil, ir.NewInvalidRequestError(name, err)
	}

	desc, err := inv.resolver.Resolve(ctx, name, targets)
	if err != nil {
		return nil, err
	}

	col, err := inv.collector.Collect(ctx, desc, targets, params.Request{
		Values:            opts.Parameters,
		StartupParameters: opts.StartupParameters,
		CreationFlow:      opts.CreationFlow,
	})
	if err != nil {
		if ir.IsCancelled(err) {
			inv.logger.Info("invocation cancelled before submission", "operation", desc.Name)
			inv.metrics.InvocationFinished(desc.Name, "cancelled", 0)
			return nil, err
		}
		return nil, fmt.Errorf("collect parameters for %s: %w", desc.Name, err)
	}

	req := inv.newRequest(desc, targets, col.Values, opts)
	started := time.Now()
	inv.metrics.InvocationStarted(desc.Name, req.Mode)
	inv.beginInvocation(ctx, req)

	// Default-lookup warnings were shown in the dialog; only messages of
	// earlier attempts that did not go back to the dialog are carried.
	var carried []ir.Message
	for {
		resp, surfaced, err := inv.execute(ctx, req)
		resp.DialogShown = col.DialogShown
		if err != nil {
			inv.finishInvocation(ctx, req, resp, "cancelled", started)
			return resp, err
		}

		fields := inv.reopenCandidates(req, resp, col)
		if len(fields) == 0 {
			inv.present(ctx, req, resp, append(carried, surfaced...))
			inv.finishInvocation(ctx, req, resp, finishStatus(resp), started)
			return resp, nil
		}

		next, rerr := inv.collector.Reopen(ctx, desc, targets, req.Values, fields)
		if rerr != nil {
			if !ir.IsCancelled(rerr) {
				inv.finishInvocation(ctx, req, resp, finishStatus(resp), started)
				return resp, fmt.Errorf("reopen parameter dialog for %s: %w", desc.Name, rerr)
			}
			// The failed attempt stands; its field messages go to the list.
			inv.present(ctx, req, resp, append(carried, surfaced...))
			inv.finishInvocation(ctx, req, resp, finishStatus(resp), started)
			return resp, nil
		}

		for _, m := range surfaced {
			if !isFieldMessage(m, fields) {
				carried = append(carried, m)
			}
		}
		req.Values = next.Values
		inv.logger.Info("resubmitting with corrected parameters",
			"invocation", req.ID,
			"operation", desc.Name,
		)
	}
}

func (inv *Invoker) newRequest(desc *ir.OperationDescriptor, targets []ir.EntityContext, values ir.Object, opts Options) *InvocationRequest {
	mode := opts.Grouping
	if mode == "" {
		mode = inv.defaultMode
	}
	sideEffects := ir.SideEffects{
		TriggerActions: append(append([]string(nil), desc.SideEffects.TriggerActions...), opts.SideEffects.TriggerActions...),
		TargetPaths:    append(append([]string(nil), desc.SideEffects.TargetPaths...), opts.SideEffects.TargetPaths...),
	}
	return &InvocationRequest{
		ID:            inv.ids.Generate(),
		Operation:     desc,
		Targets:       targets,
		Values:        values,
		Mode:          mode,
		SideEffects:   sideEffects,
		BindingExtras: opts.BindingExtras,
		Enablement:    opts.Enablement,
		Editable:      opts.Editable,
	}
}

// execute runs one attempt: every group of the plan, in order, each settled
// with its side effects requested before the next one is submitted. It returns
// the messages to surface. On context cancellation the remaining targets are
// settled as cancelled without being submitted.
func (inv *Invoker) execute(ctx context.Context, req *InvocationRequest) (*Response, []ir.Message, error) {
	req.State = NewStrictHandlingState()
	defer req.State.Reset()

	plan := GroupTargets(req.Targets, req.Mode, inv.ids)
	settled := make(map[string]*Result)
	var cancelErr error

	for _, group := range plan.Groups {
		if err := ctx.Err(); err != nil {
			cancelErr = fmt.Errorf("invocation %s cancelled: %w", req.ID, err)
			for _, entity := range groupEntities(group) {
				settled[entity.Path] = &Result{Entity: entity.Path, Status: StatusCancelled, Err: cancelErr}
			}
			continue
		}

		results := inv.runGroup(ctx, req, group)
		for _, entity := range groupEntities(group) {
			res := results[entity.Path]
			settled[entity.Path] = res
			inv.recordOutcome(ctx, req, res)
			inv.metrics.OutcomeSettled(req.Operation.Name, string(res.Status))
		}
		for _, entity := range groupEntities(group) {
			if settled[entity.Path].Status == StatusFulfilled && entity.Path != "" {
				inv.afterSettlement(ctx, req, entity, group.ID)
			}
		}
	}

	resp := &Response{InvocationID: req.ID, Multiple: len(req.Targets) > 1}
	anyFulfilled := false
	for _, entity := range groupEntities(Group{Targets: req.Targets}) {
		res := settled[entity.Path]
		resp.Results = append(resp.Results, *res)
		anyFulfilled = anyFulfilled || res.Status == StatusFulfilled
	}
	if anyFulfilled && cancelErr == nil {
		resp.Enablement = inv.recomputeEnablement(ctx, req)
	}

	var surfaced []ir.Message
	for _, m := range req.State.CollectedWarnings {
		if !req.State.ProcessedMessageIDs[m.Key()] {
			surfaced = append(surfaced, m)
		}
	}
	return resp, surfaced, cancelErr
}

// reopenCandidates returns the field messages that warrant re-presenting the
// parameter dialog: the dialog was shown, there is a single outcome, it was
// rejected, and the server addressed some of the dialog's parameters.
func (inv *Invoker) reopenCandidates(req *InvocationRequest, resp *Response, col *params.Collection) []ir.Message {
	if !col.DialogShown {
		return nil
	}
	res, ok := resp.Single()
	if !ok || res.Status != StatusRejected {
		return nil
	}
	return messages.Classify(res.Messages, inv.presentationContext(req)).Parameter
}

func isFieldMessage(m ir.Message, fields []ir.Message) bool {
	for _, f := range fields {
		if f.Key() == m.Key() {
			return true
		}
	}
	return false
}

// present hands the single presentation decision to the dialog host.
func (inv *Invoker) present(ctx context.Context, req *InvocationRequest, resp *Response, msgs []ir.Message) {
	outcomes := make([]messages.Outcome, len(resp.Results))
	for i, res := range resp.Results {
		outcomes[i] = messages.Outcome{Entity: res.Entity, Failed: res.Status == StatusRejected}
	}
	resp.Decision = messages.Aggregate(outcomes, msgs, inv.presentationContext(req), nil)

	switch resp.Decision.Kind {
	case messages.DecisionInline, messages.DecisionList:
		inv.dialogs.PresentMessageList(ctx, resp.Decision.Messages, ir.MessageListOptions{
			Inline: resp.Decision.Kind == messages.DecisionInline,
			Title:  req.Operation.Name,
		})
	}
}

func (inv *Invoker) presentationContext(req *InvocationRequest) messages.PresentationContext {
	return messages.PresentationContext{
		Operation:      req.Operation.Name,
		ParameterNames: req.Operation.ParameterNames(),
		Editable:       req.Editable,
		Mode:           req.Mode,
	}
}

func finishStatus(resp *Response) string {
	failed, ok := 0, 0
	for _, res := range resp.Results {
		switch res.Status {
		case StatusRejected:
			failed++
		case StatusFulfilled:
			ok++
		}
	}
	switch {
	case failed == 0:
		return "succeeded"
	case ok == 0:
		return "failed"
	default:
		return "partial"
	}
}
