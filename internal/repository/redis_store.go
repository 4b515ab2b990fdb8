package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/soulmechanik/forems-portal/internal/domain"
)

const (
	markerKeyPrefix = "portal:switch-marker:"
	lockKeyPrefix   = "portal:switch-lock:"

	releaseLockScriptName = "release_switch_lock"
	// Deletes the lock only if it still belongs to the caller.
	releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
)

// RedisCommands is the subset of pkg/redis.Client used by the stores
type RedisCommands interface {
	GetDel(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	EvalWithFallback(ctx context.Context, name, script string, keys []string, args ...any) *goredis.Cmd
}

// RedisMarkerStore implements MarkerStore using Redis GETDEL
type RedisMarkerStore struct {
	client RedisCommands
	ttl    time.Duration
}

// NewRedisMarkerStore creates a new RedisMarkerStore
func NewRedisMarkerStore(client RedisCommands, ttl time.Duration) *RedisMarkerStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisMarkerStore{client: client, ttl: ttl}
}

// Put records the newly active role
func (s *RedisMarkerStore) Put(ctx context.Context, sessionID string, role domain.Role) error {
	if err := s.client.Set(ctx, markerKeyPrefix+sessionID, string(role), s.ttl).Err(); err != nil {
		return fmt.Errorf("put switch marker: %w", err)
	}
	return nil
}

// Take reads and deletes the marker atomically
func (s *RedisMarkerStore) Take(ctx context.Context, sessionID string) (domain.Role, bool, error) {
	val, err := s.client.GetDel(ctx, markerKeyPrefix+sessionID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("take switch marker: %w", err)
	}
	return domain.Role(val), true, nil
}

// Drop deletes the marker
func (s *RedisMarkerStore) Drop(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, markerKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("drop switch marker: %w", err)
	}
	return nil
}

// RedisSwitchLock implements SwitchLock with SET NX and a compare-and-delete release
type RedisSwitchLock struct {
	client RedisCommands
	ttl    time.Duration
}

// NewRedisSwitchLock creates a new RedisSwitchLock. The TTL bounds how long
// a crashed request can block further switches.
func NewRedisSwitchLock(client RedisCommands, ttl time.Duration) *RedisSwitchLock {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisSwitchLock{client: client, ttl: ttl}
}

// Acquire takes the per-session lock
func (l *RedisSwitchLock) Acquire(ctx context.Context, sessionID string) (Release, error) {
	key := lockKeyPrefix + sessionID
	owner := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire switch lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrSwitchInProgress
	}

	return func(ctx context.Context) error {
		if err := l.client.EvalWithFallback(ctx, releaseLockScriptName, releaseLockScript, []string{key}, owner).Err(); err != nil {
			return fmt.Errorf("release switch lock: %w", err)
		}
		return nil
	}, nil
}
