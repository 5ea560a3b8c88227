// Package snapshot
package snapshot

import "sync"

type Store[T any] struct {
	mu   sync.RWMutex
	data T
}

func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.data = v
	s.mu.Unlock()
}

func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Update mutates the stored value in place under the write lock.
func (s *Store[T]) Update(fn func(*T)) {
	s.mu.Lock()
	fn(&s.data)
	s.mu.Unlock()
}

// View reads the stored value under the read lock.
func (s *Store[T]) View(fn func(T)) {
	s.mu.RLock()
	fn(s.data)
	s.mu.RUnlock()
}
