package params

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/opflow/internal/ir"
)

// Dialogs is the part of the dialog host the collector drives.
type Dialogs interface {
	PresentParameterDialog(ctx context.Context, req ir.ParameterDialogRequest) (ir.DialogResult, error)
	PresentConfirmation(ctx context.Context, req ir.ConfirmationRequest) (bool, error)
}

// PathReader reads a path relative to an entity (declared default paths and
// default-values functions).
type PathReader interface {
	ReadPath(ctx context.Context, path string, entity ir.EntityContext) (ir.Value, error)
}

// UserDefaults caches the values of the last confirmed dialog per operation.
type UserDefaults interface {
	LoadUserDefaults(ctx context.Context, operation string) (ir.Object, error)
	SaveUserDefaults(ctx context.Context, operation string, values ir.Object) error
}

// Extension computes default values for an operation. Extensions are
// registered per operation name by the application manifest.
type Extension func(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext) (ir.Object, error)

// Request carries the caller's input to the collector.
type Request struct {
	// Values are explicit caller-supplied parameter values.
	Values ir.Object
	// StartupParameters are values passed in by a creation flow.
	StartupParameters ir.Object
	// CreationFlow marks invocations coming from an object-creation flow.
	CreationFlow bool
}

// Collection is the outcome of a successful Collect.
type Collection struct {
	Values      ir.Object
	DialogShown bool
	Warnings    []ir.Message
}

// Collector implements parameter collection.
//
// Thread-safety: a Collector is safe for concurrent use as long as its
// collaborators are; it keeps no per-invocation state.
type Collector struct {
	dialogs      Dialogs
	reader       PathReader
	userDefaults UserDefaults
	extensions   map[string]Extension
	logger       *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithPathReader enables path and default-values-function defaults.
func WithPathReader(r PathReader) Option {
	return func(c *Collector) { c.reader = r }
}

// WithUserDefaults enables the cached user-default source.
func WithUserDefaults(u UserDefaults) Option {
	return func(c *Collector) { c.userDefaults = u }
}

// WithExtension registers a default-value extension for an operation.
func WithExtension(operation string, ext Extension) Option {
	return func(c *Collector) { c.extensions[operation] = ext }
}

// WithLogger sets the collector logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// NewCollector creates a Collector presenting dialogs through d.
func NewCollector(d Dialogs, opts ...Option) *Collector {
	c := &Collector{
		dialogs:    d,
		extensions: make(map[string]Extension),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NeedsDialog reports whether collecting values for op requires any user
// interaction: a parameter dialog, or a confirmation for a critical operation.
func (c *Collector) NeedsDialog(op *ir.OperationDescriptor, req Request) bool {
	return needsParameterDialog(op, req) || op.IsCritical
}

// needsParameterDialog applies the skip rules. The dialog is skipped when the
// operation has no user-facing parameters, when the caller supplied a value
// for every parameter (ResultIsActiveEntity exempt), or when a creation flow
// passed startup parameters covering every parameter.
func needsParameterDialog(op *ir.OperationDescriptor, req Request) bool {
	params := op.UserFacingParameters()
	if len(params) == 0 {
		return false
	}
	if covers(req.Values, params) {
		return false
	}
	if req.CreationFlow && covers(req.StartupParameters, params) {
		return false
	}
	return true
}

func covers(values ir.Object, params []ir.ParameterSpec) bool {
	if len(values) == 0 {
		return false
	}
	for _, p := range params {
		if _, ok := values[p.Name]; !ok {
			return false
		}
	}
	return true
}

// Collect returns the final parameter values for op.
//
// Without a parameter dialog a critical operation is confirmed with a single
// yes/no question. A dismissed dialog or a declined confirmation returns an
// error satisfying ir.IsCancelled; the caller must treat it as "the operation
// did not run", not as a failed result.
func (c *Collector) Collect(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext, req Request) (*Collection, error) {
	base := ir.Object{}
	if req.CreationFlow {
		for k, v := range req.StartupParameters {
			base[k] = v
		}
	}
	for k, v := range req.Values {
		base[k] = v
	}

	if !needsParameterDialog(op, req) {
		if op.IsCritical {
			ok, err := c.dialogs.PresentConfirmation(ctx, ir.ConfirmationRequest{
				Kind:      ir.ConfirmCritical,
				Operation: op.Name,
				Entities:  entityPaths(targets),
			})
			if err != nil {
				return nil, fmt.Errorf("confirm %s: %w", op.Name, err)
			}
			if !ok {
				return nil, ir.NewCancelledError(op.Name, "critical operation not confirmed")
			}
		}
		return &Collection{Values: withSyntheticFlag(op, base)}, nil
	}

	defaults := c.resolveDefaults(ctx, op, targets, base)
	col, err := c.runDialog(ctx, op, targets, defaults.values, nil, defaults.warnings())
	if err != nil {
		return nil, err
	}
	col.Warnings = defaults.warnings()
	return col, nil
}

// Reopen presents the parameter dialog again after the server rejected the
// submitted values with messages addressed to its fields.
func (c *Collector) Reopen(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext, values ir.Object, fieldMessages []ir.Message) (*Collection, error) {
	return c.runDialog(ctx, op, targets, values, fieldMessages, nil)
}

// runDialog presents the dialog until the user confirms valid values or
// dismisses it. Invalid input keeps the dialog open: it is re-presented with
// the validation messages and never closed on the user's behalf.
func (c *Collector) runDialog(ctx context.Context, op *ir.OperationDescriptor, targets []ir.EntityContext, prefill ir.Object, fieldMessages, warnings []ir.Message) (*Collection, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}

		res, err := c.dialogs.PresentParameterDialog(ctx, ir.ParameterDialogRequest{
			Operation:     op,
			Targets:       targets,
			Prefill:       prefill.Clone(),
			FieldMessages: fieldMessages,
			Warnings:      warnings,
		})
		if err != nil {
			return nil, fmt.Errorf("parameter dialog for %s: %w", op.Name, err)
		}
		if !res.Confirmed {
			return nil, ir.NewCancelledError(op.Name, "parameter dialog dismissed")
		}

		values := res.Values.Clone()
		if verr := Validate(op, values); verr != nil {
			c.logger.Debug("parameter validation failed",
				"operation", op.Name,
				"fields", verr.Fields,
			)
			prefill = values
			fieldMessages = FieldMessages(op, verr)
			warnings = nil
			continue
		}

		c.saveUserDefaults(ctx, op, values)
		return &Collection{Values: withSyntheticFlag(op, values), DialogShown: true}, nil
	}
}

func (c *Collector) saveUserDefaults(ctx context.Context, op *ir.OperationDescriptor, values ir.Object) {
	if c.userDefaults == nil {
		return
	}
	toSave := ir.Object{}
	for _, p := range op.UserFacingParameters() {
		if v, ok := values[p.Name]; ok {
			toSave[p.Name] = v
		}
	}
	if err := c.userDefaults.SaveUserDefaults(ctx, op.Name, toSave); err != nil {
		c.logger.Warn("saving user defaults failed",
			"operation", op.Name,
			"error", err,
		)
	}
}

// withSyntheticFlag supplies ResultIsActiveEntity=false when the operation
// declares it and nobody provided a value.
func withSyntheticFlag(op *ir.OperationDescriptor, values ir.Object) ir.Object {
	if _, declared := op.Parameter(ir.ResultIsActiveEntityParameter); !declared {
		return values
	}
	if _, ok := values[ir.ResultIsActiveEntityParameter]; ok {
		return values
	}
	out := values.Clone()
	out[ir.ResultIsActiveEntityParameter] = ir.Bool(false)
	return out
}

func entityPaths(targets []ir.EntityContext) []string {
	paths := make([]string, len(targets))
	for i, t := range targets {
		paths[i] = t.Path
	}
	return paths
}
