package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getPostgresPool creates a PostgreSQL connection pool for testing
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envOr("TEST_POSTGRES_USER", "postgres"),
		envOr("TEST_POSTGRES_PASSWORD", "postgres"),
		envOr("TEST_POSTGRES_HOST", "localhost"),
		envOr("TEST_POSTGRES_PORT", "5432"),
		envOr("TEST_POSTGRES_DB", "forems_portal_test"),
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping PostgreSQL: %v", err)
	}

	for _, stmt := range SessionSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("Failed to apply schema: %v", err)
		}
	}

	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresSessionRepository_Lifecycle(t *testing.T) {
	pool := getPostgresPool(t)
	repo := NewPostgresSessionRepository(pool)
	ctx := context.Background()

	id := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM portal_sessions WHERE id = $1", id)
	})

	require.NoError(t, repo.Create(ctx, &domain.SessionRecord{
		ID:        id,
		UserID:    "user-1",
		Email:     "ada@example.com",
		UserAgent: "test",
		IP:        "127.0.0.1",
		CreatedAt: now,
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.Nil(t, got.ActiveRole)
	assert.Nil(t, got.RevokedAt)

	require.NoError(t, repo.Touch(ctx, id, domain.RolePtr(domain.RoleTenant), now.Add(time.Minute)))
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveRole)
	assert.Equal(t, domain.RoleTenant, *got.ActiveRole)

	require.NoError(t, repo.Revoke(ctx, id, domain.RevokeSignOut, now.Add(2*time.Minute)))
	require.NoError(t, repo.Revoke(ctx, id, domain.RevokeUnauthorized, now.Add(3*time.Minute)))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.NotNil(t, got.RevokeReason)
	assert.Equal(t, domain.RevokeSignOut, *got.RevokeReason, "first revocation wins")
}

func TestPostgresSessionRepository_GetByIDMissing(t *testing.T) {
	repo := NewPostgresSessionRepository(getPostgresPool(t))

	got, err := repo.GetByID(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, got)
}
