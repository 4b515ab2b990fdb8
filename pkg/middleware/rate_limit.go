package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/redis"
	"github.com/soulmechanik/forems-portal/pkg/response"
	"github.com/soulmechanik/forems-portal/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitConfig describes a token bucket per key
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	KeyPrefix         string
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ratelimit:"
	}
	return c
}

// ttl is how long an idle bucket lives before it refills completely
func (c RateLimitConfig) ttl() time.Duration {
	secs := math.Ceil(float64(c.Burst)/c.RequestsPerSecond) + 1
	return time.Duration(secs) * time.Second
}

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1]) or burst
local ts = tonumber(data[2]) or now

tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)
local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end
redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("EXPIRE", KEYS[1], ttl)
return allowed
`

// RedisLimiter shares buckets across portal replicas
type RedisLimiter struct {
	client *redis.Client
	cfg    RateLimitConfig
}

// NewRedisLimiter creates a Redis-backed token bucket limiter
func NewRedisLimiter(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

// Allow takes one token from the bucket stored under key
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9
	allowed, err := l.client.EvalWithFallback(ctx, "token_bucket", tokenBucketScript,
		[]string{l.cfg.KeyPrefix + key},
		l.cfg.RequestsPerSecond,
		l.cfg.Burst,
		strconv.FormatFloat(now, 'f', 6, 64),
		int(l.cfg.ttl().Seconds()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit eval: %w", err)
	}
	return allowed == 1, nil
}

type bucket struct {
	limiter *rate.Limiter
	last    time.Time
}

// LocalLimiter keeps buckets in process memory, for single-replica deployments and tests
type LocalLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewLocalLimiter creates an in-memory token bucket limiter
func NewLocalLimiter(cfg RateLimitConfig) *LocalLimiter {
	return &LocalLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from the bucket for key
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.last = now
	return b.limiter.AllowN(now, 1), nil
}

// evict drops buckets that have been idle long enough to be full again
func (l *LocalLimiter) evict(now time.Time) {
	ttl := l.cfg.ttl()
	for k, b := range l.buckets {
		if now.Sub(b.last) > ttl {
			delete(l.buckets, k)
		}
	}
}

// RateLimit rejects requests over the limit with 429. Keys are route and client IP.
// Limiter failures let the request through.
func RateLimit(limiter Limiter, log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		ctx, span := telemetry.StartSpan(c.Request.Context(), "middleware.rate_limit")
		defer span.End()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := route + ":" + c.ClientIP()

		allowed, err := limiter.Allow(ctx, key)
		span.SetAttributes(attribute.String("rate_limit.route", route), attribute.Bool("rate_limit.allowed", err != nil || allowed))
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "1")
			response.TooManyRequests(c, "Too many attempts, please wait a moment")
			c.Abort()
			return
		}
		c.Next()
	}
}
