package storage

import (
	"context"
	"fmt"
	"time"
)

// RunningGuard enforces at most one concurrent liquidation flow per token
// address. Acquisition is an atomic check-and-insert (Redis SETNX), so the
// periodic scan path and the queue path cannot both start a flow for the
// same token. The guard key carries a TTL so a crashed flow cannot pin a
// token forever.
type RunningGuard struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewRunningGuard creates a running-token guard backed by Redis
func NewRunningGuard(redis *RedisCache, ttl time.Duration) *RunningGuard {
	return &RunningGuard{redis: redis, ttl: ttl}
}

func (g *RunningGuard) key(tokenAddress string) string {
	return CacheKey("running", tokenAddress)
}

// TryAcquire marks the token as running. Returns false when another flow
// already holds the token.
func (g *RunningGuard) TryAcquire(ctx context.Context, tokenAddress string) (bool, error) {
	acquired, err := g.redis.SetNX(ctx, g.key(tokenAddress), time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to acquire running guard for %s: %w", tokenAddress, err)
	}
	return acquired, nil
}

// Release clears the running marker for the token. Safe to call when the
// marker is absent.
func (g *RunningGuard) Release(ctx context.Context, tokenAddress string) error {
	if err := g.redis.Del(ctx, g.key(tokenAddress)); err != nil {
		return fmt.Errorf("failed to release running guard for %s: %w", tokenAddress, err)
	}
	return nil
}

// IsRunning reports whether a liquidation flow currently holds the token
func (g *RunningGuard) IsRunning(ctx context.Context, tokenAddress string) (bool, error) {
	return g.redis.Exists(ctx, g.key(tokenAddress))
}
