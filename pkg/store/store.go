// Package store persists a single value across sessions behind a versioned codec.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ritzau/syncgraph/pkg/logging"
)

// Codec converts a value to and from bytes. The version tag is written by the
// store, not by the codec, so the in-memory layout never leaks into the frame.
type Codec[T any] interface {
	Version() uint64
	Encode(v T) ([]byte, error)
	Decode(version uint64, data []byte) (T, error)
}

// Backend is durable keyed blob storage. Load returns nil, nil for a missing key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Store holds one value of type T, loaded from a backend and written back on Flush
// after it has been marked dirty.
type Store[T any] struct {
	mu         sync.Mutex
	backend    Backend
	key        string
	codec      Codec[T]
	newDefault func() T
	value      T
	dirty      bool
}

// Open loads the value stored under key. A payload that cannot be decoded
// (unknown version, corrupt bytes) is logged and replaced by a fresh default;
// only backend I/O failures are returned.
func Open[T any](ctx context.Context, backend Backend, key string, codec Codec[T], newDefault func() T) (*Store[T], error) {
	s := &Store[T]{
		backend:    backend,
		key:        key,
		codec:      codec,
		newDefault: newDefault,
		value:      newDefault(),
	}

	data, err := backend.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if data == nil {
		logging.DebugContext(ctx, "no persisted state, starting empty", "key", key)
		return s, nil
	}

	value, err := s.decode(data)
	if err != nil {
		logging.WarnContext(ctx, "discarding persisted state", "key", key, "error", err)
		return s, nil
	}
	s.value = value
	logging.DebugContext(ctx, "loaded persisted state", "key", key, "bytes", len(data))
	return s, nil
}

func (s *Store[T]) decode(data []byte) (T, error) {
	var zero T
	version, payload, err := openEnvelope(data)
	if err != nil {
		return zero, err
	}
	if version != s.codec.Version() {
		return zero, fmt.Errorf("%w: stored %d, supported %d", ErrUnknownVersion, version, s.codec.Version())
	}
	value, err := s.codec.Decode(version, payload)
	if err != nil {
		return zero, errors.Join(ErrCorrupt, err)
	}
	return value, nil
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Modify replaces the value with fn(value), marks the store dirty and returns the new value.
func (s *Store[T]) Modify(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.dirty = true
	return s.value
}

// Mark records that the value was mutated in place and must be written on the next Flush.
func (s *Store[T]) Mark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// Dirty reports whether there are unflushed changes.
func (s *Store[T]) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Reset replaces the value with a fresh default and marks the store dirty.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = s.newDefault()
	s.dirty = true
}

// Flush writes the value if it was marked dirty.
func (s *Store[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	payload, err := s.codec.Encode(s.value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.key, err)
	}
	data := sealEnvelope(s.codec.Version(), payload)
	if err := s.backend.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", s.key, err)
	}

	s.dirty = false
	logging.DebugContext(ctx, "flushed persisted state", "key", s.key, "bytes", len(data))
	return nil
}

// Close releases the backend. Unflushed changes are lost.
func (s *Store[T]) Close() error {
	return s.backend.Close()
}
