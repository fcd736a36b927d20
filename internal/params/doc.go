// Package params decides whether an operation needs interactive input and
// collects its final parameter values.
//
// Default values come from five sources, applied in priority order:
//
//  1. values supplied explicitly by the caller
//  2. an extension function registered for the operation
//  3. the parameter's declared default (literal, or a path read per target)
//  4. the operation's bound default-values function, called once per entity
//  5. the user defaults cached from the last confirmed dialog
//
// All applicable sources run concurrently; a failing lookup is reported as one
// aggregate warning and never fails the invocation.
package params
