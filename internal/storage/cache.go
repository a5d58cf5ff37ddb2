package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheNamespace prefixes every cache key written by the engine.
const CacheNamespace = "trust"

// CacheKey builds a colon-joined cache key under the engine namespace.
// Format: trust:<segment>:<segment>:...
func CacheKey(segments ...string) string {
	normalized := make([]string, len(segments))
	for i, s := range segments {
		normalized[i] = strings.ToLower(s)
	}
	return CacheNamespace + ":" + strings.Join(normalized, ":")
}

// Cache is one tier of the data cache. A false first return value is a miss;
// callers fall through to a live fetch.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// memoryEntry is one value in the in-process tier
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the fast in-process cache tier. Entries expire on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty in-process cache tier
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get retrieves a value from the in-process tier
func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set stores a value in the in-process tier
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting expired ones that have
// not been read yet.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RedisTier is the durable cache tier backed by Redis, storing JSON values.
type RedisTier struct {
	redis *RedisCache
}

// NewRedisTier creates the durable cache tier
func NewRedisTier(redis *RedisCache) *RedisTier {
	return &RedisTier{redis: redis}
}

// Get retrieves a value from Redis and deserializes it
func (r *RedisTier) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.redis.Get(ctx, key)
	if err != nil {
		// Key not found is not an error, just a cache miss
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set serializes a value to JSON and stores it in Redis
func (r *RedisTier) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.redis.Set(ctx, key, data, ttl)
}

// LayeredCache consults the fast tier first, then the durable tier. A hit in
// the durable tier back-fills the fast tier. Writes go through both tiers.
// There is no invalidation on write; staleness up to the TTL is accepted.
type LayeredCache struct {
	fast       Cache
	durable    Cache
	fastTTL    time.Duration
	durableTTL time.Duration
}

// Layered composes two cache tiers with their respective TTLs
func Layered(fast, durable Cache, fastTTL, durableTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		fast:       fast,
		durable:    durable,
		fastTTL:    fastTTL,
		durableTTL: durableTTL,
	}
}

// Get consults the tiers in order, populating the fast tier on a durable hit
func (l *LayeredCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	found, err := l.fast.Get(ctx, key, dest)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}

	found, err = l.durable.Get(ctx, key, dest)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := l.fast.Set(ctx, key, dest, l.fastTTL); err != nil {
		return true, fmt.Errorf("failed to populate fast tier: %w", err)
	}
	return true, nil
}

// Set writes through both tiers
func (l *LayeredCache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	if err := l.fast.Set(ctx, key, value, l.fastTTL); err != nil {
		return err
	}
	return l.durable.Set(ctx, key, value, l.durableTTL)
}
