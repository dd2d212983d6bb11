// Package kv is a small expiring key-value store. The OAuth flow keeps
// its anti-forgery states here: entries are written with a TTL and
// consumed with a single-use take, so a state value can be validated
// exactly once even across process instances when the Postgres
// implementation is shared.
package kv

import (
	"context"
	"sync"
	"time"
)

// Store defines the expiring KV operations.
type Store interface {
	// Put stores a value under key for at most ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Take returns the unexpired value for key and deletes it in the
	// same step. The second return is false when the key is unknown,
	// expired, or already taken.
	Take(ctx context.Context, key string) ([]byte, bool, error)

	Close() error
}

// MemoryStore implements Store in process memory. State is lost on
// restart and not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.entries[key] = memoryEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, key)
	if s.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Close() error { return nil }

// pruneLocked drops expired entries so abandoned flows don't accumulate.
func (s *MemoryStore) pruneLocked() {
	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
