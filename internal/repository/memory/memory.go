// Package memory is an in-process Store, used for transient state and tests.
package memory

import (
	"context"
	"sync"

	"github.com/and161185/slotguard/internal/errs"
)

// Store keeps values in a map guarded by a mutex.
type Store struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// New returns an empty store.
func New() *Store { return &Store{m: map[string][]byte{}} }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
