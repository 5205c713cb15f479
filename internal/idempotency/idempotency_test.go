package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps values in a map and builds go-redis result commands.
type fakeRedis struct {
	values map[string]string
	err    error
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: map[string]string{}} }

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func exerciseGuard(t *testing.T, g Guard) {
	t.Helper()
	ctx := context.Background()

	id, err := g.Begin(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	// In flight: duplicate without an order id yet.
	id, err = g.Begin(ctx, "abc")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, uuid.Nil, id)

	orderID := uuid.New()
	require.NoError(t, g.Complete(ctx, "abc", orderID))
	id, err = g.Begin(ctx, "abc")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, orderID, id)

	// A failed checkout releases its key for a retry.
	_, err = g.Begin(ctx, "retry")
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx, "retry"))
	_, err = g.Begin(ctx, "retry")
	assert.NoError(t, err)
}

func TestRedisGuard(t *testing.T) {
	exerciseGuard(t, &RedisGuard{rdb: newFakeRedis(), ttl: DefaultTTL})
}

func TestRedisGuard_ClientError(t *testing.T) {
	f := newFakeRedis()
	f.err = errors.New("dial tcp: connection refused")
	g := &RedisGuard{rdb: f, ttl: DefaultTTL}

	_, err := g.Begin(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestMemoryGuard(t *testing.T) {
	exerciseGuard(t, NewMemoryGuard(0))
}

func TestMemoryGuard_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	g := NewMemoryGuard(time.Hour)
	g.now = func() time.Time { return now }

	_, err := g.Begin(context.Background(), "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = g.Begin(context.Background(), "k")
	assert.NoError(t, err)
}
