// Package memory implements the store.KV contract with an in-process map.
// It is intended for tests and single-node deployments; expiry is enforced
// lazily at read time.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// KV is a mutex-serialized in-memory key-value store with per-key TTL.
// Because every operation holds the lock, GetDel is atomic: concurrent
// consumers of the same key see at most one success.
type KV struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewKV creates a new in-memory KV store.
func NewKV() *KV {
	return &KV{
		entries: make(map[string]entry),
	}
}

// Get returns the value for key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, oautherrors.NotFound("key", key)
	}
	return append([]byte(nil), e.value...), nil
}

// GetDel returns the value for key and deletes it atomically.
func (s *KV) GetDel(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	delete(s.entries, key)
	if !ok || e.expired(time.Now()) {
		return nil, oautherrors.NotFound("key", key)
	}
	return append([]byte(nil), e.value...), nil
}

// Put stores value under key with an optional TTL.
func (s *KV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// List returns all live keys with the given prefix.
func (s *KV) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var keys []string
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close is a no-op for the in-memory store.
func (s *KV) Close() error {
	return nil
}
