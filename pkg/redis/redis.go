package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/soulmechanik/forems-portal/pkg/retry"
)

// Config holds Redis connection settings for the marker and lock stores
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxRetries    int
	RetryInterval time.Duration

	EnableTracing bool
}

// DefaultConfig returns settings for a local Redis
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          6379,
		PoolSize:      20,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   time.Second,
		WriteTimeout:  time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is the portal's handle on Redis. Lua scripts are registered by name
// and run with EVALSHA, falling back to EVAL when the server lost its cache.
type Client struct {
	client  *redis.Client
	scripts sync.Map // name -> *redis.Script
}

// NewClient dials Redis and waits until it answers PING
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if cfg.EnableTracing {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("instrument redis tracing: %w", err)
		}
	}

	result := retry.New(retry.ConnectConfig(cfg.MaxRetries, cfg.RetryInterval)).Do(ctx, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if result.Err != nil {
		_ = rdb.Close()
		cause := result.LastError
		if cause == nil {
			cause = result.Err
		}
		return nil, fmt.Errorf("failed to connect to redis at %s after %d attempts: %w", cfg.Addr(), result.Attempts, cause)
	}

	return &Client{client: rdb}, nil
}

// Client returns the underlying go-redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck pings Redis with a short bound for the readiness probe
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func (c *Client) script(name, src string) *redis.Script {
	if s, ok := c.scripts.Load(name); ok {
		return s.(*redis.Script)
	}
	s, _ := c.scripts.LoadOrStore(name, redis.NewScript(src))
	return s.(*redis.Script)
}

// Registered reports whether a script has been run under name
func (c *Client) Registered(name string) bool {
	_, ok := c.scripts.Load(name)
	return ok
}

// EvalWithFallback runs the named script. The first call registers src under name.
func (c *Client) EvalWithFallback(ctx context.Context, name, src string, keys []string, args ...any) *redis.Cmd {
	return c.script(name, src).Run(ctx, c.client, keys, args...)
}

// GetDel reads a value and deletes the key in one round trip
func (c *Client) GetDel(ctx context.Context, key string) *redis.StringCmd {
	return c.client.GetDel(ctx, key)
}

// Set writes a value with an optional expiration
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	return c.client.Set(ctx, key, value, expiration)
}

// SetNX writes a value only when the key is absent
func (c *Client) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	return c.client.SetNX(ctx, key, value, expiration)
}

// Del removes keys
func (c *Client) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	return c.client.Del(ctx, keys...)
}
