package entities

import (
	"fmt"
	"path"
	"time"
)

// DefaultUserColor is assigned to users that register without a color.
const DefaultUserColor = "#3B82F6"

// DateLayout is the wire and storage layout of task due dates.
const DateLayout = "2006-01-02"

// Enums and types
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "inprogress"
	TaskStatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

type ActivityType string

const (
	ActivityTaskCreated ActivityType = "task_created"
	ActivityTaskUpdated ActivityType = "task_updated"
	ActivityTaskMoved   ActivityType = "task_moved"
	ActivityTaskDeleted ActivityType = "task_deleted"
)

// User represents an account. Email is the login identity.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Color        string    `json:"color" db:"color"`
	Avatar       *string   `json:"avatar" db:"avatar"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"`
}

// Label is shared between tasks; deleting it only detaches it.
type Label struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Task represents a card on the board.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      TaskStatus `json:"status" db:"status"`
	AssigneeID  *int64     `json:"assignee_id" db:"assignee_id"`
	DueDate     time.Time  `json:"due_date" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TaskDetails is a task with its relations resolved.
type TaskDetails struct {
	Task
	AssigneeName    *string `db:"assignee_name"`
	CommentCount    int     `db:"comment_count"`
	AttachmentCount int     `db:"attachment_count"`
	Labels          []Label `db:"-"`
}

// Comment belongs to a task and an author.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CommentDetails is a comment with its author resolved.
type CommentDetails struct {
	Comment
	AuthorName  string `db:"author_name"`
	AuthorColor string `db:"author_color"`
}

// Attachment references a stored file.
type Attachment struct {
	ID           int64     `json:"id" db:"id"`
	TaskID       int64     `json:"task_id" db:"task_id"`
	UploadedBy   int64     `json:"uploaded_by" db:"uploaded_by"`
	FilePath     string    `json:"file_path" db:"file_path"`
	OriginalName string    `json:"original_name" db:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// AttachmentDetails is an attachment with its uploader resolved.
type AttachmentDetails struct {
	Attachment
	UploadedByName string `db:"uploaded_by_name"`
}

// ActivityLog is an append-only ledger entry.
type ActivityLog struct {
	ID         int64        `json:"id" db:"id"`
	Type       ActivityType `json:"type" db:"type"`
	Message    string       `json:"message" db:"message"`
	UserID     int64        `json:"user_id" db:"user_id"`
	TaskID     *int64       `json:"task_id" db:"task_id"`
	FromStatus *TaskStatus  `json:"from_status" db:"from_status"`
	ToStatus   *TaskStatus  `json:"to_status" db:"to_status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// ActivityDetails is an activity entry with user and task resolved.
// TaskTitle is nil once the task is gone.
type ActivityDetails struct {
	ActivityLog
	UserName  string  `db:"user_name"`
	TaskTitle *string `db:"task_title"`
}

// StatusCounts holds per-status task counts.
type StatusCounts struct {
	Todo       int `db:"todo"`
	InProgress int `db:"inprogress"`
	Done       int `db:"done"`
}

// DashboardCounts aggregates board statistics.
type DashboardCounts struct {
	StatusCounts
	Total             int `db:"total"`
	Overdue           int `db:"overdue"`
	CreatedThisWeek   int `db:"created_this_week"`
	CompletedThisWeek int `db:"completed_this_week"`
	TotalUsers        int `db:"-"`
}

// Business logic methods for Task

func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (at ActivityType) IsValid() bool {
	switch at {
	case ActivityTaskCreated, ActivityTaskUpdated, ActivityTaskMoved, ActivityTaskDeleted:
		return true
	default:
		return false
	}
}

// MoveTo changes the status and returns the activity entry describing it.
// It returns nil when the status does not change.
func (t *Task) MoveTo(status TaskStatus, actorID int64) (*ActivityLog, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if t.Status == status {
		return nil, nil
	}

	from := t.Status
	t.Status = status
	to := status
	return &ActivityLog{
		Type:       ActivityTaskMoved,
		Message:    fmt.Sprintf("Task %q moved from %s to %s", t.Title, from, to),
		UserID:     actorID,
		TaskID:     &t.ID,
		FromStatus: &from,
		ToStatus:   &to,
	}, nil
}

// NewTaskActivity builds a non-move activity entry for a task.
func NewTaskActivity(kind ActivityType, task *Task, actorID int64, message string) *ActivityLog {
	taskID := task.ID
	return &ActivityLog{
		Type:    kind,
		Message: message,
		UserID:  actorID,
		TaskID:  &taskID,
	}
}

// Name returns the basename of the stored file.
func (a *Attachment) Name() string {
	return path.Base(a.FilePath)
}

// DueDateString formats the due date for the wire.
func (t *Task) DueDateString() string {
	return t.DueDate.Format(DateLayout)
}
