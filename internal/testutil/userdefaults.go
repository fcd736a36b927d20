package testutil

import (
	"context"
	"sync"

	"github.com/roach88/opflow/internal/ir"
)

// MemoryUserDefaults is an in-memory params.UserDefaults.
type MemoryUserDefaults struct {
	mu     sync.Mutex
	values map[string]ir.Object
}

// NewMemoryUserDefaults creates an empty cache.
func NewMemoryUserDefaults() *MemoryUserDefaults {
	return &MemoryUserDefaults{values: make(map[string]ir.Object)}
}

// LoadUserDefaults implements params.UserDefaults.
func (m *MemoryUserDefaults) LoadUserDefaults(_ context.Context, operation string) (ir.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[operation].Clone(), nil
}

// SaveUserDefaults implements params.UserDefaults.
func (m *MemoryUserDefaults) SaveUserDefaults(_ context.Context, operation string, values ir.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[operation] = values.Clone()
	return nil
}
