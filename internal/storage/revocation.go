package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryRevocationStore keeps revoked session ids in a TTL cache. A revocation
// is only dropped once its session has expired; when the store is full of live
// revocations, Revoke fails instead.
// Revocations are lost on restart and not shared between replicas.
type MemoryRevocationStore struct {
	cache *ExpiringCache
}

// NewMemoryRevocationStore creates a store holding at most capacity live revocations
func NewMemoryRevocationStore(capacity int) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		cache: NewExpiringCache(capacity),
	}
}

// Revoke marks the session id as revoked until expiresAt
func (s *MemoryRevocationStore) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if !s.cache.Add(sessionID, ttl) {
		return ErrRevocationStoreFull
	}
	return nil
}

// IsRevoked reports whether the session id was revoked
func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	return s.cache.Contains(sessionID), nil
}

// RedisRevocationStore keeps revoked session ids as expiring Redis keys
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRevocationStore creates a Redis-backed revocation store
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		prefix: "chat:revoked:",
	}
}

// Revoke marks the session id as revoked until expiresAt
func (s *RedisRevocationStore) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+sessionID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether the session id was revoked
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return n > 0, nil
}
