package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory RedisCommands. TTLs are recorded, not enforced.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) GetDel(ctx context.Context, key string) *goredis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	delete(f.data, key)
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewBoolResult(false, f.err)
	}
	if _, ok := f.data[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	f.ttls[key] = expiration
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

// EvalWithFallback emulates the compare-and-delete release script.
func (f *fakeRedis) EvalWithFallback(ctx context.Context, name, script string, keys []string, args ...any) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return goredis.NewCmdResult(nil, f.err)
	}
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return goredis.NewCmdResult(int64(1), nil)
	}
	return goredis.NewCmdResult(int64(0), nil)
}

func TestRedisMarkerStore_TakeIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := NewRedisMarkerStore(newFakeRedis(), time.Minute)

	require.NoError(t, store.Put(ctx, "sid-1", domain.RoleTenant))

	role, ok, err := store.Take(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.RoleTenant, role)

	_, ok, err = store.Take(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok, "marker must be consumed by the first read")
}

func TestRedisMarkerStore_ScopedBySession(t *testing.T) {
	ctx := context.Background()
	store := NewRedisMarkerStore(newFakeRedis(), time.Minute)

	require.NoError(t, store.Put(ctx, "sid-1", domain.RoleAgent))

	_, ok, err := store.Take(ctx, "sid-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMarkerStore_DropAndTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	store := NewRedisMarkerStore(fake, 0)

	require.NoError(t, store.Put(ctx, "sid-1", domain.RoleLandlord))
	assert.Equal(t, 2*time.Minute, fake.ttls[markerKeyPrefix+"sid-1"])

	require.NoError(t, store.Drop(ctx, "sid-1"))
	_, ok, err := store.Take(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisMarkerStore_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	store := NewRedisMarkerStore(fake, time.Minute)

	assert.Error(t, store.Put(ctx, "sid", domain.RoleTenant))
	_, ok, err := store.Take(ctx, "sid")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, store.Drop(ctx, "sid"))
}

func TestRedisSwitchLock_SecondAcquireFails(t *testing.T) {
	ctx := context.Background()
	lock := NewRedisSwitchLock(newFakeRedis(), time.Second)

	release, err := lock.Acquire(ctx, "sid-1")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrSwitchInProgress)

	// Other sessions are independent.
	other, err := lock.Acquire(ctx, "sid-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))

	again, err := lock.Acquire(ctx, "sid-1")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisSwitchLock_StaleReleaseKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	lock := NewRedisSwitchLock(fake, time.Second)

	stale, err := lock.Acquire(ctx, "sid-1")
	require.NoError(t, err)

	// Simulate expiry followed by a new owner.
	delete(fake.data, lockKeyPrefix+"sid-1")
	_, err = lock.Acquire(ctx, "sid-1")
	require.NoError(t, err)

	require.NoError(t, stale(ctx))

	_, err = lock.Acquire(ctx, "sid-1")
	assert.ErrorIs(t, err, domain.ErrSwitchInProgress, "stale release must not free the new owner's lock")
}

func TestRedisSwitchLock_AcquireError(t *testing.T) {
	fake := newFakeRedis()
	fake.err = errors.New("boom")
	lock := NewRedisSwitchLock(fake, 0)

	_, err := lock.Acquire(context.Background(), "sid")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSwitchInProgress)
}
