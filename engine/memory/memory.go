// Package memory provides an in-memory persistence engine. Snapshots
// survive only for the lifetime of the process; intended for tests and
// for composition roots that want persistence semantics without storage.
package memory

import (
	"context"
	"sync"
)

// Engine holds the most recent snapshot in memory.
// Safe for overlapping saves and loads.
type Engine struct {
	mu       sync.Mutex
	snapshot any
	saved    bool
}

// New returns an empty in-memory engine.
func New() *Engine {
	return &Engine{}
}

// Save replaces the held snapshot.
func (e *Engine) Save(_ context.Context, snapshot any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = snapshot
	e.saved = true
	return nil
}

// Load returns the most recently saved snapshot, or nil if nothing has
// been saved.
func (e *Engine) Load(_ context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot, nil
}

// Saved reports whether Save has been called at least once.
func (e *Engine) Saved() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saved
}
