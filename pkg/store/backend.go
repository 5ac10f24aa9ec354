package store

import (
	"fmt"
	"path/filepath"
)

// Backend kinds accepted by NewBackend
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// NewBackend opens the backend of the given kind rooted at dir.
func NewBackend(kind, dir string) (Backend, error) {
	switch kind {
	case "", BackendFile:
		return NewFileBackend(dir)
	case BackendSQLite:
		fb, err := NewFileBackend(dir)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(filepath.Join(fb.dir, "store.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
