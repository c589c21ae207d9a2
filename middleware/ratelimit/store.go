package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store keeps a hit counter per key inside a fixed window.
type Store interface {
	// Get returns the current count for key, or zero once the window has passed.
	Get(ctx context.Context, key string) (count int, resetAt time.Time, err error)
	// Increment adds one hit, opening a new window of length window when none is active.
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
	// Cleanup drops expired windows and reports how many were removed.
	Cleanup(ctx context.Context) (int64, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && s.now().Before(e.resetAt) {
		return e.count, e.resetAt, nil
	}
	return 0, time.Time{}, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.data[key]; ok && now.Before(e.resetAt) {
		e.count++
		return e.count, e.resetAt, nil
	}

	e := &entry{count: 1, resetAt: now.Add(window)}
	s.data[key] = e
	return e.count, e.resetAt, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, e := range s.data {
		if !now.Before(e.resetAt) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}
