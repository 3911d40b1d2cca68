// Package memory is an in-process snapshot store. It keeps the encoded
// payload rather than the live value, so a load always returns a fresh copy
// and exercises the same codec as the durable backends.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/tienda/state"
	"github.com/xraph/tienda/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

func New() *Store {
	return &Store{}
}

func (s *Store) LoadSnapshot(_ context.Context) (state.AppState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return store.Decode(s.data)
}

func (s *Store) SaveSnapshot(_ context.Context, st state.AppState) error {
	data, err := store.Encode(st)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
	s.saves++
	return nil
}

// Raw returns a copy of the stored payload.
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]byte(nil), s.data...)
}

// SetRaw replaces the stored payload verbatim.
func (s *Store) SetRaw(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
}

// Saves reports how many snapshots have been written.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.saves
}

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }
