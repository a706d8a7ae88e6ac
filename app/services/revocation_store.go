package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/ams-registry/utils"
	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers revoked token IDs until the token would expire
type RevocationStore interface {
	Revoke(tokenID string, expiresAt time.Time) error
	IsRevoked(tokenID string) (bool, error)
}

// MemoryRevocationStore keeps revocations in process memory
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time)}
}

func (m *MemoryRevocationStore) Revoke(tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := utils.UTCNow()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *MemoryRevocationStore) IsRevoked(tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

// RedisRevocationStore shares revocations between API instances
type RedisRevocationStore struct {
	client    redis.UniversalClient
	keyPrefix string
	timeout   time.Duration
}

func NewRedisRevocationStore(client redis.UniversalClient, keyPrefix string) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, keyPrefix: keyPrefix + "revoked:", timeout: 2 * time.Second}
}

func (r *RedisRevocationStore) Revoke(tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.keyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocationStore) IsRevoked(tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	err := r.client.Get(ctx, r.keyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
