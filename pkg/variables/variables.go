// Package variables implements the request scoped variable store mappings read and
// write through column-to-variable and variable-to-column mappings.
package variables

import (
	"context"
	"strings"
	"sync"
)

type Store interface {
	// Get returns false if the variable was never set.
	Get(ctx context.Context, name string) (any, bool, error)
	Set(ctx context.Context, name string, value any) error
}

// Memory is a store for one request. Names are case-insensitive.
type Memory struct {
	values map[string]any
	mu     sync.RWMutex
}

func NewMemory(initial map[string]any) *Memory {
	m := &Memory{values: make(map[string]any, len(initial))}
	for k, v := range initial {
		m.values[normalize(k)] = v
	}
	return m
}

func (m *Memory) Get(_ context.Context, name string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[normalize(name)]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[normalize(name)] = value
	return nil
}

// All returns a copy of all variables.
func (m *Memory) All() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]any, len(m.values))
	for k, v := range m.values {
		result[k] = v
	}
	return result
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
