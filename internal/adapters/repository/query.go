package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskboard/kanban/internal/domain/entities"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern returns a lower-cased substring pattern for
// `LOWER(col) LIKE ? ESCAPE '\'` with LIKE wildcards in s matched literally.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// isUniqueViolation reports whether err is a unique constraint failure on
// PostgreSQL or SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// now returns the current time as stored in timestamp columns.
func now() time.Time {
	return time.Now().UTC()
}

// uniqueIDs returns ids sorted with duplicates removed.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// rowsAffectedOrNotFound turns a zero-row write into notFound.
func rowsAffectedOrNotFound(res interface{ RowsAffected() (int64, error) }, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// insertActivity appends an activity entry using q, which may be a
// transaction.
func insertActivity(ctx context.Context, q sqlx.ExtContext, entry *entities.ActivityLog) error {
	if !entry.Type.IsValid() {
		return entities.NewValidationError(fmt.Sprintf("Invalid activity type: %s", entry.Type))
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}

	query := q.Rebind(`
		INSERT INTO activity_logs (type, message, user_id, task_id, from_status, to_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	if err := sqlx.GetContext(ctx, q, &entry.ID, query,
		entry.Type, entry.Message, entry.UserID, entry.TaskID,
		entry.FromStatus, entry.ToStatus, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}
