// Package memory is an in-process snapshot backend. Contents are lost when
// the process exits.
package memory

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/hris-ledger-go/internal/repository/snapshot"
)

type Backend struct {
	mu   sync.RWMutex
	data map[string][]byte
	err  error
}

func NewBackend() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

func (b *Backend) Read(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	payload, ok := b.data[key]
	if !ok {
		return nil, snapshot.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (b *Backend) Write(ctx context.Context, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}
	b.data[key] = append([]byte(nil), payload...)
	return nil
}

// FailWrites makes every subsequent Write return err. Pass nil to recover.
func (b *Backend) FailWrites(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}
