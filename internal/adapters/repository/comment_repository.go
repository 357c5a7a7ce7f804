package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

const commentSelect = `
	SELECT c.id, c.task_id, c.author_id, c.content, c.created_at, c.updated_at,
		u.username AS author_name, u.color AS author_color
	FROM comments c
	JOIN users u ON u.id = c.author_id`

// CommentRepositoryImpl implements the CommentRepository interface
type CommentRepositoryImpl struct {
	db *sqlx.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sqlx.DB) ports.CommentRepository {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *entities.Comment) error {
	query := r.db.Rebind(`
		INSERT INTO comments (task_id, author_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = now()
	}
	comment.UpdatedAt = comment.CreatedAt

	if err := r.db.QueryRowxContext(ctx, query,
		comment.TaskID, comment.AuthorID, comment.Content, comment.CreatedAt, comment.UpdatedAt,
	).Scan(&comment.ID); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}

	return nil
}

func (r *CommentRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.CommentDetails, error) {
	var comment entities.CommentDetails
	if err := r.db.GetContext(ctx, &comment, r.db.Rebind(commentSelect+` WHERE c.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment by id: %w", err)
	}

	return &comment, nil
}

// ListByTask returns the task's comments oldest first.
func (r *CommentRepositoryImpl) ListByTask(ctx context.Context, taskID int64) ([]*entities.CommentDetails, error) {
	query := r.db.Rebind(commentSelect + ` WHERE c.task_id = ? ORDER BY c.created_at ASC, c.id ASC`)

	comments := []*entities.CommentDetails{}
	if err := r.db.SelectContext(ctx, &comments, query, taskID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	return comments, nil
}

// Update rewrites the content only; task and author never change.
func (r *CommentRepositoryImpl) Update(ctx context.Context, comment *entities.Comment) error {
	comment.UpdatedAt = now()
	query := r.db.Rebind(`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, comment.Content, comment.UpdatedAt, comment.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrCommentNotFound)
}

func (r *CommentRepositoryImpl) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM comments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrCommentNotFound)
}
