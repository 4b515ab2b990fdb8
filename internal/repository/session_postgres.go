package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/soulmechanik/forems-portal/internal/domain"
)

// SessionSchema creates the session audit table
var SessionSchema = []string{
	`CREATE TABLE IF NOT EXISTS portal_sessions (
		id            VARCHAR(36) PRIMARY KEY,
		user_id       VARCHAR(64) NOT NULL,
		email         VARCHAR(320) NOT NULL DEFAULT '',
		active_role   VARCHAR(32),
		user_agent    TEXT NOT NULL DEFAULT '',
		ip            VARCHAR(64) NOT NULL DEFAULT '',
		created_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		refreshed_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		revoked_at    TIMESTAMP WITH TIME ZONE,
		revoke_reason VARCHAR(32)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_portal_sessions_user_id ON portal_sessions (user_id)`,
}

// PostgresSessionRepository implements SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository
func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create records a new signed-in session
func (r *PostgresSessionRepository) Create(ctx context.Context, record *domain.SessionRecord) error {
	query := `
		INSERT INTO portal_sessions (id, user_id, email, active_role, user_agent, ip, created_at, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.Email,
		roleColumn(record.ActiveRole),
		record.UserAgent,
		record.IP,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session record: %w", err)
	}
	return nil
}

// Touch records a successful refresh
func (r *PostgresSessionRepository) Touch(ctx context.Context, id string, activeRole *domain.Role, at time.Time) error {
	query := `
		UPDATE portal_sessions
		SET refreshed_at = $2, active_role = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, id, at, roleColumn(activeRole)); err != nil {
		return fmt.Errorf("touch session record: %w", err)
	}
	return nil
}

// Revoke closes a session
func (r *PostgresSessionRepository) Revoke(ctx context.Context, id string, reason domain.RevokeReason, at time.Time) error {
	query := `
		UPDATE portal_sessions
		SET revoked_at = $2, revoke_reason = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, id, at, string(reason)); err != nil {
		return fmt.Errorf("revoke session record: %w", err)
	}
	return nil
}

// GetByID retrieves a session record by ID
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*domain.SessionRecord, error) {
	query := `
		SELECT id, user_id, email, active_role, user_agent, ip, created_at, refreshed_at, revoked_at, revoke_reason
		FROM portal_sessions
		WHERE id = $1
	`
	var (
		record     domain.SessionRecord
		activeRole *string
		reason     *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&record.UserID,
		&record.Email,
		&activeRole,
		&record.UserAgent,
		&record.IP,
		&record.CreatedAt,
		&record.RefreshedAt,
		&record.RevokedAt,
		&reason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session record: %w", err)
	}
	if activeRole != nil {
		record.ActiveRole = domain.RolePtr(domain.Role(*activeRole))
	}
	if reason != nil {
		rr := domain.RevokeReason(*reason)
		record.RevokeReason = &rr
	}
	return &record, nil
}

func roleColumn(r *domain.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}
