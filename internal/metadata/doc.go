// Package metadata resolves operation descriptors from service metadata.
//
// A Provider returns the raw metadata of one operation by path. Bound
// operations live under "<BindingType>/<name>", unbound ones under "<name>".
// CUEProvider is the bundled Provider: it compiles a CUE service definition
// with the CUE Go API (no CLI subprocess).
//
// Resolver turns raw metadata into an ir.OperationDescriptor for one
// invocation: it drops the binding parameter, evaluates criticality against
// the first target and strips binding-parameter segments from paths.
package metadata
