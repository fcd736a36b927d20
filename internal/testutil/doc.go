// Package testutil provides scripted collaborators for engine tests and the
// scenario harness: a transport answering from a per-entity script, a dialog
// host answering from queues, a recording side-effects service and an
// in-memory user-default cache. Every fake records what it was asked so
// tests can assert on calls.
package testutil
