// Package store provides the SQLite invocation journal and the user-default
// cache.
//
// The journal is append-only:
//   - invocations: one row per caller call, finished with a status
//   - submissions: one row per group per strict-handling round
//   - outcomes: one row per settled entity (per attempt when the parameter
//     dialog was re-opened)
//
// Ordering uses the engine's logical seq, never timestamps. Every query
// orders by seq ASC, id ASC so traces read back identically.
//
// user_defaults keeps the last confirmed dialog values per operation.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
