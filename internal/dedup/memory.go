// Package dedup remembers recently delivered webhook message ids so that
// platform retries are handled once.
package dedup

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL covers the platform's redelivery window.
const DefaultTTL = 24 * time.Hour

// MemoryStore is a process-local Store. Expired ids are dropped by Evict.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore creates a MemoryStore keeping ids for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen records id and reports whether it was already recorded and not yet
// expired.
func (s *MemoryStore) Seen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.seen[id]; ok && now.Before(exp) {
		return true, nil
	}
	s.seen[id] = now.Add(s.ttl)
	return false, nil
}

// Evict removes all expired ids and returns how many were dropped.
func (s *MemoryStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, id)
			n++
		}
	}
	return n
}

// Len returns the number of ids held, including expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
