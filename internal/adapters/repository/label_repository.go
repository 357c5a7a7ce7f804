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

// LabelRepositoryImpl implements the LabelRepository interface
type LabelRepositoryImpl struct {
	db *sqlx.DB
}

// NewLabelRepository creates a new label repository
func NewLabelRepository(db *sqlx.DB) ports.LabelRepository {
	return &LabelRepositoryImpl{db: db}
}

func (r *LabelRepositoryImpl) Create(ctx context.Context, label *entities.Label) error {
	query := r.db.Rebind(`
		INSERT INTO labels (name, color, created_at)
		VALUES (?, ?, ?)
		RETURNING id`)

	if label.CreatedAt.IsZero() {
		label.CreatedAt = now()
	}

	if err := r.db.QueryRowxContext(ctx, query, label.Name, label.Color, label.CreatedAt).Scan(&label.ID); err != nil {
		return fmt.Errorf("create label: %w", err)
	}

	return nil
}

func (r *LabelRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Label, error) {
	query := r.db.Rebind(`SELECT id, name, color, created_at FROM labels WHERE id = ?`)

	var label entities.Label
	if err := r.db.GetContext(ctx, &label, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrLabelNotFound
		}
		return nil, fmt.Errorf("get label by id: %w", err)
	}

	return &label, nil
}

// GetByIDs returns the labels that exist among ids, ordered by id.
func (r *LabelRepositoryImpl) GetByIDs(ctx context.Context, ids []int64) ([]entities.Label, error) {
	labels := []entities.Label{}
	if len(ids) == 0 {
		return labels, nil
	}

	query, args, err := sqlx.In(`SELECT id, name, color, created_at FROM labels WHERE id IN (?) ORDER BY id ASC`, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("build label query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &labels, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get labels by ids: %w", err)
	}

	return labels, nil
}

func (r *LabelRepositoryImpl) List(ctx context.Context) ([]entities.Label, error) {
	labels := []entities.Label{}
	if err := r.db.SelectContext(ctx, &labels, `SELECT id, name, color, created_at FROM labels ORDER BY id ASC`); err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	return labels, nil
}

func (r *LabelRepositoryImpl) Update(ctx context.Context, label *entities.Label) error {
	query := r.db.Rebind(`UPDATE labels SET name = ?, color = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, label.Name, label.Color, label.ID)
	if err != nil {
		return fmt.Errorf("update label: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrLabelNotFound)
}

// Delete removes the label and detaches it from every task.
func (r *LabelRepositoryImpl) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM labels WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}

	return rowsAffectedOrNotFound(result, entities.ErrLabelNotFound)
}
