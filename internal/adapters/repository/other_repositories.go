package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

// AuthRepositoryImpl implements the AuthRepository interface
type AuthRepositoryImpl struct {
	db *sqlx.DB
}

// NewAuthRepository creates a new auth repository
func NewAuthRepository(db *sqlx.DB) ports.AuthRepository {
	return &AuthRepositoryImpl{db: db}
}

func (r *AuthRepositoryImpl) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	query := r.db.Rebind(`
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt.UTC(), now())
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *AuthRepositoryImpl) GetRefreshToken(ctx context.Context, tokenHash string) (*ports.RefreshToken, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE token_hash = ?`)

	var token ports.RefreshToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.NewNotFoundError("Refresh token not found")
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	return &token, nil
}

// RevokeRefreshToken marks a live token revoked. A token that is unknown or
// already revoked is not found, so only one of two racing callers wins.
func (r *AuthRepositoryImpl) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE token_hash = ? AND revoked_at IS NULL`)

	result, err := r.db.ExecContext(ctx, query, now(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.NewNotFoundError("Refresh token not found"))
}

func (r *AuthRepositoryImpl) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL`)

	if _, err := r.db.ExecContext(ctx, query, now(), userID); err != nil {
		return fmt.Errorf("revoke all user tokens: %w", err)
	}

	return nil
}

// CleanupExpiredTokens deletes expired tokens and returns how many went.
func (r *AuthRepositoryImpl) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM refresh_tokens WHERE expires_at < ?`), now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return n, nil
}

// ActivityRepositoryImpl implements the ActivityRepository interface
type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sqlx.DB) ports.ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

// Recent returns the newest entries first.
func (r *ActivityRepositoryImpl) Recent(ctx context.Context, limit int) ([]*entities.ActivityDetails, error) {
	query := r.db.Rebind(`
		SELECT a.id, a.type, a.message, a.user_id, a.task_id, a.from_status, a.to_status, a.created_at,
			u.username AS user_name, t.title AS task_title
		FROM activity_logs a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN tasks t ON t.id = a.task_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`)

	entries := []*entities.ActivityDetails{}
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}

	return entries, nil
}

// StatsRepositoryImpl implements the StatsRepository interface
type StatsRepositoryImpl struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *sqlx.DB) ports.StatsRepository {
	return &StatsRepositoryImpl{db: db}
}

// DashboardCounts aggregates the task table in a single pass. A task is
// overdue when its due date is before today and it is not done.
func (r *StatsRepositoryImpl) DashboardCounts(ctx context.Context, today, weekStart time.Time) (*entities.DashboardCounts, error) {
	query := r.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'todo' THEN 1 ELSE 0 END), 0) AS todo,
			COALESCE(SUM(CASE WHEN status = 'inprogress' THEN 1 ELSE 0 END), 0) AS inprogress,
			COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0) AS done,
			COALESCE(SUM(CASE WHEN due_date < ? AND status <> 'done' THEN 1 ELSE 0 END), 0) AS overdue,
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS created_this_week,
			COALESCE(SUM(CASE WHEN status = 'done' AND updated_at >= ? THEN 1 ELSE 0 END), 0) AS completed_this_week
		FROM tasks`)

	weekStart = weekStart.UTC()
	var counts entities.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, today.Format(entities.DateLayout), weekStart, weekStart); err != nil {
		return nil, fmt.Errorf("aggregate dashboard counts: %w", err)
	}

	return &counts, nil
}
