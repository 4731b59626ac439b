package repository

import (
	"bytes"
	"context"
	"sync"
)

// MemoryStore is an in-process Store. Two services sharing one MemoryStore
// behave like two sessions sharing browser storage.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	rev    uint64
	closed bool
}

// NewMemoryStore returns an empty store at revision 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) (uint64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.data[key] = bytes.Clone(value)
	s.rev++
	return s.rev, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (uint64, error) {
	if key == "" {
		return 0, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	delete(s.data, key)
	s.rev++
	return s.rev, nil
}

func (s *MemoryStore) Revision(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.rev, nil
}

// Close marks the store closed; later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
