// Package kv defines the string key-value store that holds per-client
// session state, plus the in-memory backend.
package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Store is a flat string key-value store. Deleting a missing key is not an
// error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero never expires
}

// MemoryStore keeps entries in process. With a TTL, every write restarts the
// entry's lifetime and expired entries are swept on later writes.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type MemoryOption func(*MemoryStore)

// WithTTL expires entries ttl after their last write. Non-positive keeps
// entries until they are deleted.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.expired(entry, s.now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := memoryEntry{value: value}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
		if now.Sub(s.lastSweep) >= s.ttl {
			s.sweepLocked(now)
		}
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, entry := range s.entries {
		if !s.expired(entry, now) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, entry := range s.entries {
		if s.expired(entry, now) {
			delete(s.entries, key)
		}
	}
	s.lastSweep = now
}

type scopedStore struct {
	parent Store
	prefix string
}

// Scoped returns a view of parent whose keys live under scope. Two scopes
// never see each other's entries.
func Scoped(parent Store, scope string) Store {
	return &scopedStore{
		parent: parent,
		prefix: strings.TrimSpace(scope) + ":",
	}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.parent.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.parent.Delete(ctx, s.prefix+key)
}
