package metadata

import (
	"context"
	"errors"

	"github.com/roach88/opflow/internal/ir"
)

// ErrNoMetadata is returned by providers when no operation exists at a path.
var ErrNoMetadata = errors.New("no operation metadata")

// Provider supplies raw operation metadata.
type Provider interface {
	// OperationMetadata returns the metadata at path, or ErrNoMetadata.
	OperationMetadata(ctx context.Context, path string) (*RawOperation, error)
}

// RawParameter is a parameter exactly as declared, binding parameter included.
type RawParameter struct {
	Name     string
	Type     string
	Nullable bool
	Default  ir.DefaultSource
}

// RawOperation is undigested operation metadata.
// For bound operations Parameters[0] is the binding parameter.
type RawOperation struct {
	Name                  string
	Kind                  ir.OperationKind
	IsBound               bool
	IsStatic              bool
	Parameters            []RawParameter
	CriticalLiteral       *bool  // set when criticality is a literal
	CriticalPath          string // set when criticality is a path expression
	ReturnType            string
	ReturnsCollection     bool
	SideEffects           ir.SideEffects
	DefaultValuesFunction string
}

// BindingParameter returns the binding parameter of a bound operation.
func (r *RawOperation) BindingParameter() (RawParameter, bool) {
	if !r.IsBound || len(r.Parameters) == 0 {
		return RawParameter{}, false
	}
	return r.Parameters[0], true
}

// OperationPath returns the metadata path for an operation invoked on targets.
// Bound invocations are addressed through the entity type of the first target.
func OperationPath(name string, targets []ir.EntityContext) string {
	if len(targets) == 0 || targets[0].EntityType == "" {
		return name
	}
	return targets[0].EntityType + "/" + name
}
