package metadata

import (
	"context"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/opflow/internal/ir"
)

// CUEProvider serves operation metadata compiled from a CUE service definition:
//
//	operations: {
//		"Orders/OrderService.approve": {
//			kind:     "action"
//			binding:  {name: "_it", type: "Orders"}
//			critical: "_it/IsHighValue"
//			parameters: [{name: "Comment", type: "string", nullable: true}]
//			returns: {type: "Orders"}
//			sideEffects: {triggerActions: ["OrderService.recalc"], targets: ["Items"]}
//		}
//	}
//
// The provider is immutable after compilation and safe for concurrent use.
type CUEProvider struct {
	operations map[string]*RawOperation
}

// LoadCUEFile compiles a CUE service definition file.
func LoadCUEFile(path string) (*CUEProvider, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service definition: %w", err)
	}
	return CompileCUE(src, path)
}

// CompileCUE compiles CUE source into a provider.
func CompileCUE(src []byte, filename string) (*CUEProvider, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	opsVal := v.LookupPath(cue.ParsePath("operations"))
	if !opsVal.Exists() {
		return nil, &CompileError{
			Field:   "operations",
			Message: "operations is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	p := &CUEProvider{operations: make(map[string]*RawOperation)}
	for iter.Next() {
		path := iter.Label()
		op, err := compileOperation(path, iter.Value())
		if err != nil {
			return nil, err
		}
		p.operations[path] = op
	}
	return p, nil
}

// OperationMetadata implements Provider.
func (p *CUEProvider) OperationMetadata(_ context.Context, path string) (*RawOperation, error) {
	op, ok := p.operations[path]
	if !ok {
		return nil, fmt.Errorf("%w at %q", ErrNoMetadata, path)
	}
	return op, nil
}

// Paths returns all operation paths in sorted order.
func (p *CUEProvider) Paths() []string {
	paths := make([]string, 0, len(p.operations))
	for path := range p.operations {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// compileOperation parses one operation entry. The operation name is the
// part of the path after the binding type.
func compileOperation(path string, v cue.Value) (*RawOperation, error) {
	op := &RawOperation{Name: operationName(path), Kind: ir.KindAction}

	if kindVal := v.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch ir.OperationKind(kind) {
		case ir.KindAction, ir.KindFunction:
			op.Kind = ir.OperationKind(kind)
		default:
			return nil, &CompileError{
				Field:   path + ".kind",
				Message: fmt.Sprintf("invalid kind %q, must be action or function", kind),
				Pos:     kindVal.Pos(),
			}
		}
	}

	if bindingVal := v.LookupPath(cue.ParsePath("binding")); bindingVal.Exists() {
		name, err := requiredString(bindingVal, path+".binding", "name")
		if err != nil {
			return nil, err
		}
		typ, err := requiredString(bindingVal, path+".binding", "type")
		if err != nil {
			return nil, err
		}
		op.IsBound = true
		op.Parameters = append(op.Parameters, RawParameter{Name: name, Type: typ})
	}

	var err error
	if op.IsStatic, err = optionalBool(v, "static"); err != nil {
		return nil, err
	}

	if critVal := v.LookupPath(cue.ParsePath("critical")); critVal.Exists() {
		switch critVal.Kind() {
		case cue.BoolKind:
			b, err := critVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			op.CriticalLiteral = &b
		case cue.StringKind:
			s, err := critVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			op.CriticalPath = s
		default:
			return nil, &CompileError{
				Field:   path + ".critical",
				Message: "critical must be a bool or a path string",
				Pos:     critVal.Pos(),
			}
		}
	}

	params, err := compileParameters(path, v)
	if err != nil {
		return nil, err
	}
	op.Parameters = append(op.Parameters, params...)

	if retVal := v.LookupPath(cue.ParsePath("returns")); retVal.Exists() {
		if op.ReturnType, err = optionalString(retVal, "type"); err != nil {
			return nil, err
		}
		if op.ReturnsCollection, err = optionalBool(retVal, "collection"); err != nil {
			return nil, err
		}
	}

	if seVal := v.LookupPath(cue.ParsePath("sideEffects")); seVal.Exists() {
		if op.SideEffects.TriggerActions, err = stringList(seVal, "triggerActions"); err != nil {
			return nil, err
		}
		if op.SideEffects.TargetPaths, err = stringList(seVal, "targets"); err != nil {
			return nil, err
		}
	}

	if op.DefaultValuesFunction, err = optionalString(v, "defaultValuesFunction"); err != nil {
		return nil, err
	}

	return op, nil
}

// compileParameters parses the parameters list (optional, may be empty).
func compileParameters(path string, v cue.Value) ([]RawParameter, error) {
	listVal := v.LookupPath(cue.ParsePath("parameters"))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []RawParameter
	for iter.Next() {
		pv := iter.Value()
		field := fmt.Sprintf("%s.parameters[%d]", path, len(params))

		name, err := requiredString(pv, field, "name")
		if err != nil {
			return nil, err
		}
		typ, err := optionalString(pv, "type")
		if err != nil {
			return nil, err
		}
		if typ == "" {
			typ = "string"
		}
		nullable, err := optionalBool(pv, "nullable")
		if err != nil {
			return nil, err
		}

		param := RawParameter{Name: name, Type: typ, Nullable: nullable}

		if defVal := pv.LookupPath(cue.ParsePath("default")); defVal.Exists() {
			lit, err := literalValue(defVal)
			if err != nil {
				return nil, err
			}
			param.Default.Literal = lit
		}
		if param.Default.Path, err = optionalString(pv, "defaultPath"); err != nil {
			return nil, err
		}
		if param.Default.Literal != nil && param.Default.Path != "" {
			return nil, &CompileError{
				Field:   field,
				Message: "default and defaultPath are mutually exclusive",
				Pos:     pv.Pos(),
			}
		}

		params = append(params, param)
	}
	return params, nil
}

// literalValue converts a concrete CUE scalar into an ir.Value.
func literalValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "default",
			Message: "float defaults are not supported - use a string for decimals",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("default must be a concrete scalar, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requiredString(v cue.Value, field, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, name string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// operationName strips the binding type prefix from an operation path.
func operationName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// CompileError represents a service definition error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
