package otp

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps codes in process memory. Used in tests and single-node
// demo deployments; the redis store is the multi-node variant.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	hash      string
	attempts  int
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Save(ctx context.Context, sessionID, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = &memoryEntry{hash: hash, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.entries, sessionID)
		return "", 0, ErrNotIssued
	}
	return e.hash, e.attempts, nil
}

func (s *MemoryStore) IncrAttempts(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return 0, ErrNotIssued
	}
	e.attempts++
	return e.attempts, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
