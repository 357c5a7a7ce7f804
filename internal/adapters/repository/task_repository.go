package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/database"
	"github.com/taskboard/kanban/internal/ports"
)

// taskSelect resolves the assignee name and live comment/attachment counts.
const taskSelect = `
	SELECT t.id, t.title, t.description, t.status, t.assignee_id, t.due_date,
		t.created_at, t.updated_at,
		u.username AS assignee_name,
		(SELECT COUNT(*) FROM comments c WHERE c.task_id = t.id) AS comment_count,
		(SELECT COUNT(*) FROM attachments a WHERE a.task_id = t.id) AS attachment_count
	FROM tasks t
	LEFT JOIN users u ON u.id = t.assignee_id`

// TaskRepositoryImpl implements the TaskRepository interface
type TaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) ports.TaskRepository {
	return &TaskRepositoryImpl{db: db}
}

// Create inserts the task, its label links and the optional activity entry
// in one transaction.
func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task, labelIDs []int64, activity *entities.ActivityLog) error {
	if task.Status == "" {
		task.Status = entities.TaskStatusTodo
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO tasks (title, description, status, assignee_id, due_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`)

		if err := tx.QueryRowxContext(ctx, query,
			task.Title, task.Description, task.Status, task.AssigneeID,
			task.DueDateString(), task.CreatedAt, task.UpdatedAt,
		).Scan(&task.ID); err != nil {
			return fmt.Errorf("create task: %w", err)
		}

		if err := insertTaskLabels(ctx, tx, task.ID, labelIDs); err != nil {
			return err
		}

		if activity != nil {
			activity.TaskID = &task.ID
			if err := insertActivity(ctx, tx, activity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.TaskDetails, error) {
	var task entities.TaskDetails
	if err := r.db.GetContext(ctx, &task, r.db.Rebind(taskSelect+` WHERE t.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}

	if err := loadTaskLabels(ctx, r.db, []*entities.TaskDetails{&task}); err != nil {
		return nil, err
	}

	return &task, nil
}

// Update writes every task column and refreshes updated_at. A nil labelIDs
// keeps the current labels.
func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task, labelIDs []int64, activity *entities.ActivityLog) error {
	task.UpdatedAt = now()

	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			UPDATE tasks
			SET title = ?, description = ?, status = ?, assignee_id = ?, due_date = ?, updated_at = ?
			WHERE id = ?`)

		result, err := tx.ExecContext(ctx, query,
			task.Title, task.Description, task.Status, task.AssigneeID,
			task.DueDateString(), task.UpdatedAt, task.ID,
		)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if err := rowsAffectedOrNotFound(result, entities.ErrTaskNotFound); err != nil {
			return err
		}

		if labelIDs != nil {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM task_labels WHERE task_id = ?`), task.ID); err != nil {
				return fmt.Errorf("clear task labels: %w", err)
			}
			if err := insertTaskLabels(ctx, tx, task.ID, labelIDs); err != nil {
				return err
			}
		}

		if activity != nil {
			activity.TaskID = &task.ID
			if err := insertActivity(ctx, tx, activity); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete records the activity entry and removes the task. Comments,
// attachments and label links cascade; activity rows keep a null task.
func (r *TaskRepositoryImpl) Delete(ctx context.Context, id int64, activity *entities.ActivityLog) error {
	return database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if activity != nil {
			activity.TaskID = &id
			if err := insertActivity(ctx, tx, activity); err != nil {
				return err
			}
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return rowsAffectedOrNotFound(result, entities.ErrTaskNotFound)
	})
}

// List retrieves tasks matching every set filter, ordered by id.
func (r *TaskRepositoryImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.TaskDetails, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "t.status = ?")
		args = append(args, *filter.Status)
	}

	if filter.AssigneeID != nil {
		conditions = append(conditions, "t.assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}

	if len(filter.LabelIDs) > 0 {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM task_labels tl WHERE tl.task_id = t.id AND tl.label_id IN (?))")
		args = append(args, uniqueIDs(filter.LabelIDs))
	}

	if filter.Search != "" {
		conditions = append(conditions, `(LOWER(t.title) LIKE ? ESCAPE '\' OR LOWER(t.description) LIKE ? ESCAPE '\')`)
		pattern := likePattern(filter.Search)
		args = append(args, pattern, pattern)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.In(`SELECT COUNT(*) FROM tasks t`+whereClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("build task count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := taskSelect + whereClause + ` ORDER BY t.id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	query, args, err = sqlx.In(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("build task query: %w", err)
	}

	tasks := []*entities.TaskDetails{}
	if err := r.db.SelectContext(ctx, &tasks, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	if err := loadTaskLabels(ctx, r.db, tasks); err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *TaskRepositoryImpl) StatusCounts(ctx context.Context) (entities.StatusCounts, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'todo' THEN 1 ELSE 0 END), 0) AS todo,
			COALESCE(SUM(CASE WHEN status = 'inprogress' THEN 1 ELSE 0 END), 0) AS inprogress,
			COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0) AS done
		FROM tasks`

	var counts entities.StatusCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return counts, fmt.Errorf("count tasks by status: %w", err)
	}

	return counts, nil
}

func insertTaskLabels(ctx context.Context, tx *sqlx.Tx, taskID int64, labelIDs []int64) error {
	query := tx.Rebind(`INSERT INTO task_labels (task_id, label_id) VALUES (?, ?)`)
	for _, labelID := range uniqueIDs(labelIDs) {
		if _, err := tx.ExecContext(ctx, query, taskID, labelID); err != nil {
			return fmt.Errorf("attach label %d: %w", labelID, err)
		}
	}
	return nil
}

type taskLabelRow struct {
	TaskID int64 `db:"task_id"`
	entities.Label
}

// loadTaskLabels fills Labels on every task with one query.
func loadTaskLabels(ctx context.Context, q sqlx.ExtContext, tasks []*entities.TaskDetails) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*entities.TaskDetails, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		t.Labels = []entities.Label{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	query, args, err := sqlx.In(`
		SELECT tl.task_id, l.id, l.name, l.color, l.created_at
		FROM task_labels tl
		JOIN labels l ON l.id = tl.label_id
		WHERE tl.task_id IN (?)
		ORDER BY l.id ASC`, ids)
	if err != nil {
		return fmt.Errorf("build task labels query: %w", err)
	}

	var rows []taskLabelRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load task labels: %w", err)
	}

	for _, row := range rows {
		if t, ok := byID[row.TaskID]; ok {
			t.Labels = append(t.Labels, row.Label)
		}
	}
	return nil
}
