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

const attachmentSelect = `
	SELECT a.id, a.task_id, a.uploaded_by, a.file_path, a.original_name, a.uploaded_at,
		u.username AS uploaded_by_name
	FROM attachments a
	JOIN users u ON u.id = a.uploaded_by`

// AttachmentRepositoryImpl implements the AttachmentRepository interface
type AttachmentRepositoryImpl struct {
	db *sqlx.DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *sqlx.DB) ports.AttachmentRepository {
	return &AttachmentRepositoryImpl{db: db}
}

func (r *AttachmentRepositoryImpl) Create(ctx context.Context, attachment *entities.Attachment) error {
	query := r.db.Rebind(`
		INSERT INTO attachments (task_id, uploaded_by, file_path, original_name, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = now()
	}

	if err := r.db.QueryRowxContext(ctx, query,
		attachment.TaskID, attachment.UploadedBy, attachment.FilePath,
		attachment.OriginalName, attachment.UploadedAt,
	).Scan(&attachment.ID); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}

	return nil
}

func (r *AttachmentRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.AttachmentDetails, error) {
	var attachment entities.AttachmentDetails
	if err := r.db.GetContext(ctx, &attachment, r.db.Rebind(attachmentSelect+` WHERE a.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("get attachment by id: %w", err)
	}

	return &attachment, nil
}

func (r *AttachmentRepositoryImpl) ListByTask(ctx context.Context, taskID int64) ([]*entities.AttachmentDetails, error) {
	query := r.db.Rebind(attachmentSelect + ` WHERE a.task_id = ? ORDER BY a.uploaded_at ASC, a.id ASC`)

	attachments := []*entities.AttachmentDetails{}
	if err := r.db.SelectContext(ctx, &attachments, query, taskID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	return attachments, nil
}

func (r *AttachmentRepositoryImpl) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM attachments WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrAttachmentNotFound)
}

func (r *AttachmentRepositoryImpl) FilePathsByTask(ctx context.Context, taskID int64) ([]string, error) {
	return r.filePaths(ctx, `SELECT file_path FROM attachments WHERE task_id = ?`, taskID)
}

func (r *AttachmentRepositoryImpl) FilePathsByUploader(ctx context.Context, userID int64) ([]string, error) {
	return r.filePaths(ctx, `SELECT file_path FROM attachments WHERE uploaded_by = ?`, userID)
}

func (r *AttachmentRepositoryImpl) filePaths(ctx context.Context, query string, id int64) ([]string, error) {
	paths := []string{}
	if err := r.db.SelectContext(ctx, &paths, r.db.Rebind(query), id); err != nil {
		return nil, fmt.Errorf("list attachment paths: %w", err)
	}
	return paths, nil
}
