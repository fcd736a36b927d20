package testutil

import (
	"context"
	"sync"

	"github.com/roach88/opflow/internal/ir"
)

// SideEffectCall is one recorded side-effect request.
type SideEffectCall struct {
	Kind    string // "trigger" or "paths"
	Name    string // trigger action name
	Paths   []string
	Entity  string
	GroupID string
}

// RecordingSideEffects records side-effect requests and fails those of the
// configured entities.
//
// Thread-safety: safe for concurrent use.
type RecordingSideEffects struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []SideEffectCall
}

// NewRecordingSideEffects creates a service that succeeds for every entity.
func NewRecordingSideEffects() *RecordingSideEffects {
	return &RecordingSideEffects{fail: make(map[string]error)}
}

// FailFor makes every request for entity return err.
func (s *RecordingSideEffects) FailFor(entity string, err error) *RecordingSideEffects {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[entity] = err
	return s
}

// ExecuteTriggerAction implements engine.SideEffectsService.
func (s *RecordingSideEffects) ExecuteTriggerAction(_ context.Context, name string, entity ir.EntityContext, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SideEffectCall{Kind: "trigger", Name: name, Entity: entity.Path, GroupID: groupID})
	return s.fail[entity.Path]
}

// RequestPaths implements engine.SideEffectsService.
func (s *RecordingSideEffects) RequestPaths(_ context.Context, paths []string, entity ir.EntityContext, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SideEffectCall{Kind: "paths", Paths: append([]string(nil), paths...), Entity: entity.Path, GroupID: groupID})
	return s.fail[entity.Path]
}

// Calls returns every recorded request in order.
func (s *RecordingSideEffects) Calls() []SideEffectCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SideEffectCall(nil), s.calls...)
}
