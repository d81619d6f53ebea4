package watcloud

import (
	"maps"
	"sync"
)

// RuntimeInfo is a string-keyed map served at /runtime-info. It is safe for
// concurrent use.
type RuntimeInfo struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRuntimeInfo returns a RuntimeInfo holding a copy of initial.
func NewRuntimeInfo(initial map[string]any) *RuntimeInfo {
	values := make(map[string]any, len(initial))
	maps.Copy(values, initial)
	return &RuntimeInfo{values: values}
}

// Set stores value under key.
func (ri *RuntimeInfo) Set(key string, value any) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.values[key] = value
}

// Get returns the value stored under key.
func (ri *RuntimeInfo) Get(key string) (any, bool) {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	v, ok := ri.values[key]
	return v, ok
}

// Delete removes key.
func (ri *RuntimeInfo) Delete(key string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	delete(ri.values, key)
}

// Snapshot returns a shallow copy of the current values.
func (ri *RuntimeInfo) Snapshot() map[string]any {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return maps.Clone(ri.values)
}
