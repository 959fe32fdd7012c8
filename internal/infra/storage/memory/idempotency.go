package memory

import (
	"context"
	"sync"
	"time"

	"gueststay/internal/app/middleware"
)

// IdempotencyStore keeps command results in memory and forgets expired ones
// on read.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
	clock func() time.Time
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord), clock: time.Now}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	rec, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if rec.Expired(s.clock()) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Reserve(_ context.Context, rec middleware.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[rec.Key]; ok && !cur.Expired(rec.OccurredAt) {
		return false, nil
	}
	s.items[rec.Key] = rec
	return true, nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.items[key]; ok && rec.Pending {
		delete(s.items, key)
	}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
