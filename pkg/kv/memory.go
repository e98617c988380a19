package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps everything in process. It backs local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.mu.Lock()
	s.values[key] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, key)
	delete(s.lists, key)
	s.mu.Unlock()
	return nil
}

// ScanPrefix returns matching documents ordered by key.
func (s *MemoryStore) ScanPrefix(_ context.Context, prefix string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		v := make([]byte, len(s.values[k]))
		copy(v, s.values[k])
		out = append(out, v)
	}
	return out, nil
}

func (s *MemoryStore) PushFront(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.lists[key]
	next := make([]string, 0, len(current)+1)
	next = append(next, member)
	next = append(next, current...)
	s.lists[key] = next
	return nil
}

func (s *MemoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := s.lists[key]
	out := make([]string, len(current))
	copy(out, current)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
