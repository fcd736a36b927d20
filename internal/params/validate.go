package params

import (
	"fmt"

	"github.com/roach88/opflow/internal/ir"
)

// Validate checks dialog values against the operation's parameters: every
// non-nullable parameter must be present and non-null, and values of the
// scalar types String, Int32/Int64 and Boolean must have the matching kind.
// It returns nil or a *ir.OperationError with code PARAMETER_VALIDATION.
func Validate(op *ir.OperationDescriptor, values ir.Object) *ir.OperationError {
	fields := make(map[string]string)
	for _, p := range op.UserFacingParameters() {
		v, ok := values[p.Name]
		_, isNull := v.(ir.Null)
		if !ok || v == nil || isNull {
			if !p.Nullable {
				fields[p.Name] = "value is required"
			}
			continue
		}
		if msg := checkType(p.Type, v); msg != "" {
			fields[p.Name] = msg
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return ir.NewValidationError(op.Name, fields)
}

func checkType(typ string, v ir.Value) string {
	switch typ {
	case "string", "Edm.String":
		if _, ok := v.(ir.String); !ok {
			return "expected a string"
		}
	case "int", "Edm.Int32", "Edm.Int64":
		if _, ok := v.(ir.Int); !ok {
			return "expected an integer"
		}
	case "bool", "Edm.Boolean":
		if _, ok := v.(ir.Bool); !ok {
			return "expected a boolean"
		}
	}
	return ""
}

// FieldMessages turns a validation error into error messages targeted at the
// dialog's fields, in parameter declaration order.
func FieldMessages(op *ir.OperationDescriptor, err *ir.OperationError) []ir.Message {
	var out []ir.Message
	for _, p := range op.Parameters {
		text, ok := err.Fields[p.Name]
		if !ok {
			continue
		}
		out = append(out, ir.Message{
			Code:     string(ir.ErrCodeParameterValidation),
			Text:     fmt.Sprintf("%s: %s", p.Name, text),
			Severity: ir.SeverityError,
			Target:   ir.ParameterTarget(op.Name, p.Name),
		})
	}
	return out
}
