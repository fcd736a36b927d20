// Package telemetry carries the engine's observability: Prometheus metrics
// for invocations, submissions, confirmations and side effects, and the slog
// logger the CLI configures.
//
// A disabled Metrics is a valid no-op, so callers never branch on whether
// metrics are configured.
package telemetry
