// Package snapshot stores whole-state JSON snapshots under a key on a
// pluggable byte backend.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Backend when nothing is stored under a key.
var ErrNotFound = errors.New("snapshot not found")

// Backend reads and writes raw snapshot payloads.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, payload []byte) error
}

// Store is a typed snapshot bound to one key of a Backend.
type Store[T any] struct {
	backend Backend
	key     string
	empty   func() T
}

// New returns a Store for key. empty builds the state returned when the
// backend has nothing stored yet.
func New[T any](backend Backend, key string, empty func() T) *Store[T] {
	return &Store[T]{
		backend: backend,
		key:     key,
		empty:   empty,
	}
}

func (s *Store[T]) Load(ctx context.Context) (T, error) {
	payload, err := s.backend.Read(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.empty(), nil
		}
		var zero T
		return zero, fmt.Errorf("read snapshot %s: %w", s.key, err)
	}

	state := s.empty()
	if err := json.Unmarshal(payload, &state); err != nil {
		var zero T
		return zero, fmt.Errorf("decode snapshot %s: %w", s.key, err)
	}
	return state, nil
}

func (s *Store[T]) Save(ctx context.Context, state T) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.key, err)
	}
	if err := s.backend.Write(ctx, s.key, payload); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.key, err)
	}
	return nil
}
