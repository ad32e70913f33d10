// Package filestore provides a persistence engine backed by a single JSON
// file. Writes go to a temp file in the same directory followed by a
// rename, so readers never observe a partially written snapshot.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/statekit/stash/internal/canonical"
)

// Engine persists snapshots to one file at path.
//
// Overlapping saves are each atomic; the last rename wins. That matches
// the middleware contract, which does not order concurrent saves.
type Engine struct {
	path string
}

// New returns a file engine writing to path. The parent directory must
// exist.
func New(path string) *Engine {
	return &Engine{path: path}
}

// Save writes the snapshot as canonical JSON.
func (e *Engine) Save(_ context.Context, snapshot any) error {
	data, err := canonical.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(e.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, e.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file is not an error: it means
// nothing has been persisted yet, and Load returns nil.
func (e *Engine) Load(_ context.Context) (any, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return canonical.Unmarshal(data)
}
