package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local denylist for tests and single node
// development. Expired entries are dropped lazily.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty store. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

func (s *MemoryStore) Blacklist(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[Fingerprint(token)] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) IsBlacklisted(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(Fingerprint(token)), nil
}

func (s *MemoryStore) Claim(_ context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Fingerprint(token)
	if s.liveLocked(key) {
		return false, nil
	}
	s.entries[key] = s.now().Add(ttl)
	return true, nil
}

// Len counts live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.entries {
		if s.liveLocked(key) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) liveLocked(key string) bool {
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}
