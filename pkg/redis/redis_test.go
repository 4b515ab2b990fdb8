package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultConfig()
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	cfg.Password = os.Getenv("TEST_REDIS_PASSWORD")

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.False(t, cfg.EnableTracing)
}

func TestConfig_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"redis.internal", 6380, "redis.internal:6380"},
		{"::1", 6379, "[::1]:6379"},
	}
	for _, tt := range tests {
		cfg := &Config{Host: tt.host, Port: tt.port}
		assert.Equal(t, tt.want, cfg.Addr())
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &Config{
		Host:          "127.0.0.1",
		Port:          1,
		MaxRetries:    1,
		RetryInterval: 10 * time.Millisecond,
		DialTimeout:   200 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, cfg)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestClient_HealthCheck_Integration(t *testing.T) {
	client := integrationClient(t)
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestClient_MarkerOperations_Integration(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()
	key := "test:marker:" + uuid.NewString()
	defer client.Del(ctx, key)

	require.NoError(t, client.Set(ctx, key, "landlord", time.Minute).Err())

	ok, err := client.SetNX(ctx, key, "tenant", time.Minute).Result()
	require.NoError(t, err)
	assert.False(t, ok, "SetNX must not overwrite")

	val, err := client.GetDel(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "landlord", val)

	_, err = client.Client().Get(ctx, key).Result()
	assert.ErrorIs(t, err, goredis.Nil)
}

func TestClient_EvalWithFallback_Integration(t *testing.T) {
	client := integrationClient(t)
	ctx := context.Background()
	const src = `return tonumber(ARGV[1]) * 2`

	n, err := client.EvalWithFallback(ctx, "test_double", src, nil, 7).Int()
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.True(t, client.Registered("test_double"))

	// server-side cache loss is recovered by EVAL
	require.NoError(t, client.Client().ScriptFlush(ctx).Err())
	n, err = client.EvalWithFallback(ctx, "test_double", src, nil, 10).Int()
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}
