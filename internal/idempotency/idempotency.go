// Package idempotency guards checkout against replays of the same
// Idempotency-Key header.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrDuplicate is returned by Begin when the key was already used.
var ErrDuplicate = errors.New("idempotency key already used")

// DefaultTTL is how long a key is remembered.
const DefaultTTL = 24 * time.Hour

const pending = "pending"

// Guard records checkout keys. Begin claims a key; Complete binds it to the
// created order; Release frees it after a failed checkout so it can be retried.
type Guard interface {
	Begin(ctx context.Context, key string) (uuid.UUID, error)
	Complete(ctx context.Context, key string, orderID uuid.UUID) error
	Release(ctx context.Context, key string) error
}

// redisClient is the subset of *redis.Client the guard uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisGuard stores keys in Redis with a TTL.
type RedisGuard struct {
	rdb redisClient
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func redisKey(key string) string { return fmt.Sprintf("idempotent-key:%s", key) }

// Begin claims key. If the key is taken, it returns ErrDuplicate together
// with the order id the key produced, or uuid.Nil while that checkout is
// still in flight.
func (g *RedisGuard) Begin(ctx context.Context, key string) (uuid.UUID, error) {
	ok, err := g.rdb.SetNX(ctx, redisKey(key), pending, g.ttl).Result()
	if err != nil {
		return uuid.Nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return uuid.Nil, nil
	}

	val, err := g.rdb.Get(ctx, redisKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return uuid.Nil, fmt.Errorf("read idempotency key: %w", err)
	}
	id, _ := uuid.Parse(val)
	return id, ErrDuplicate
}

func (g *RedisGuard) Complete(ctx context.Context, key string, orderID uuid.UUID) error {
	return g.rdb.Set(ctx, redisKey(key), orderID.String(), g.ttl).Err()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.rdb.Del(ctx, redisKey(key)).Err()
}

// MemoryGuard is a process-local Guard for single-instance deployments.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	keys map[string]memoryEntry
}

type memoryEntry struct {
	orderID uuid.UUID
	expires time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, keys: make(map[string]memoryEntry)}
}

func (g *MemoryGuard) Begin(_ context.Context, key string) (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if e, ok := g.keys[key]; ok && now.Before(e.expires) {
		return e.orderID, ErrDuplicate
	}
	g.keys[key] = memoryEntry{expires: now.Add(g.ttl)}
	return uuid.Nil, nil
}

func (g *MemoryGuard) Complete(_ context.Context, key string, orderID uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = memoryEntry{orderID: orderID, expires: g.now().Add(g.ttl)}
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}
