package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/opflow/internal/ir"
)

// PathReader reads a path relative to an entity from the remote service.
// The transport implements it; the resolver uses it when the client snapshot
// of the first target does not contain a criticality path.
type PathReader interface {
	ReadPath(ctx context.Context, path string, entity ir.EntityContext) (ir.Value, error)
}

// Resolver resolves operation descriptors.
//
// Thread-safety: Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	provider Provider
	reader   PathReader
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPathReader lets criticality paths fall back to a remote read.
func WithPathReader(r PathReader) ResolverOption {
	return func(res *Resolver) {
		res.reader = r
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(res *Resolver) {
		res.logger = l
	}
}

// NewResolver creates a Resolver over a metadata provider.
func NewResolver(p Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{provider: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the descriptor of operation name invoked on targets.
//
// Rules:
//   - missing metadata fails with an OPERATION_NOT_FOUND error
//   - the binding parameter of a bound operation is not part of Parameters
//   - a criticality path is evaluated against the FIRST target only, after
//     stripping the binding-parameter segment; further targets are not
//     consulted (multi-target criticality is an approximation)
//   - default-value paths are made relative to the entity the same way
func (r *Resolver) Resolve(ctx context.Context, name string, targets []ir.EntityContext) (*ir.OperationDescriptor, error) {
	path := OperationPath(name, targets)

	raw, err := r.provider.OperationMetadata(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNoMetadata) {
			return nil, ir.NewNotFoundError(name, path)
		}
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if raw.IsBound && len(targets) == 0 && !raw.IsStatic {
		return nil, ir.NewInvalidRequestError(name, fmt.Errorf("bound operation %s needs at least one target", name))
	}

	desc := &ir.OperationDescriptor{
		Name:                  raw.Name,
		Kind:                  raw.Kind,
		IsBound:               raw.IsBound,
		IsStatic:              raw.IsStatic,
		ReturnsCollection:     raw.ReturnsCollection,
		DefaultValuesFunction: raw.DefaultValuesFunction,
		SideEffects:           raw.SideEffects,
		Parameters:            make([]ir.ParameterSpec, 0, len(raw.Parameters)),
	}

	params := raw.Parameters
	if binding, ok := raw.BindingParameter(); ok {
		desc.BindingParameter = binding.Name
		desc.BindingType = binding.Type
		desc.ReturnsSameType = raw.ReturnType != "" && raw.ReturnType == binding.Type
		params = params[1:]
	}

	for _, p := range params {
		spec := ir.ParameterSpec{
			Name:     p.Name,
			Type:     p.Type,
			Nullable: p.Nullable,
			Default:  p.Default,
		}
		if spec.Default.Path != "" {
			spec.Default.Path = StripBindingSegment(spec.Default.Path, desc.BindingParameter)
		}
		desc.Parameters = append(desc.Parameters, spec)
	}

	desc.IsCritical = r.resolveCriticality(ctx, raw, desc.BindingParameter, targets)

	return desc, nil
}

// resolveCriticality evaluates literal or path criticality. An unresolvable
// path counts as not critical and is logged.
func (r *Resolver) resolveCriticality(ctx context.Context, raw *RawOperation, bindingParam string, targets []ir.EntityContext) bool {
	if raw.CriticalLiteral != nil {
		return *raw.CriticalLiteral
	}
	if raw.CriticalPath == "" || len(targets) == 0 {
		return false
	}

	path := StripBindingSegment(raw.CriticalPath, bindingParam)
	first := targets[0]

	if v, ok := first.Data.Lookup(path); ok {
		return ir.Truthy(v)
	}
	if r.reader == nil {
		return false
	}

	v, err := r.reader.ReadPath(ctx, path, first)
	if err != nil {
		r.logger.Warn("criticality path unresolved",
			"operation", raw.Name,
			"path", path,
			"entity", first.Path,
			"error", err,
		)
		return false
	}
	return ir.Truthy(v)
}

// StripBindingSegment removes a leading binding-parameter segment from a path
// ("_it/IsHighValue" -> "IsHighValue"). Paths not starting with the binding
// parameter are returned unchanged.
func StripBindingSegment(path, bindingParam string) string {
	if bindingParam == "" {
		return path
	}
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == bindingParam {
		return ""
	}
	if rest, ok := strings.CutPrefix(trimmed, bindingParam+"/"); ok {
		return rest
	}
	return path
}
