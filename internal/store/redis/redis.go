// Package redis implements the store.KV contract on top of Redis. Single-use
// consumption maps to GETDEL, so code exchange is atomic under concurrency;
// TTLs are enforced natively by the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	oautherrors "github.com/tendant/simple-oauth/internal/errors"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces all keys, e.g. "oauth:" for shared instances.
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KV is a Redis-backed key-value store.
type KV struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewKV connects to Redis and verifies connectivity.
func NewKV(ctx context.Context, cfg Config) (*KV, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &KV{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewKVWithClient creates a KV with a pre-configured client. Used in tests
// with miniredis.
func NewKVWithClient(client redis.UniversalClient, keyPrefix string) *KV {
	return &KV{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *KV) key(k string) string {
	return s.keyPrefix + k
}

// Get returns the value for key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oautherrors.NotFound("key", key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// GetDel returns the value for key and deletes it. GETDEL is atomic on the
// server, so at most one concurrent caller succeeds.
func (s *KV) GetDel(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oautherrors.NotFound("key", key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel %s: %w", key, err)
	}
	return val, nil
}

// Put stores value under key with an optional TTL.
func (s *KV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix, without the store's own
// key prefix.
func (s *KV) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return keys, nil
}

// Ping checks Redis connectivity (health check).
func (s *KV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *KV) Close() error {
	return s.client.Close()
}
