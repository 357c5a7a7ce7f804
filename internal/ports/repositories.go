package ports

import (
	"context"
	"io"
	"time"

	"github.com/taskboard/kanban/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter UserFilter) ([]*entities.User, error)
	Count(ctx context.Context) (int, error)
}

// LabelRepository defines the interface for label data operations
type LabelRepository interface {
	Create(ctx context.Context, label *entities.Label) error
	GetByID(ctx context.Context, id int64) (*entities.Label, error)
	GetByIDs(ctx context.Context, ids []int64) ([]entities.Label, error)
	List(ctx context.Context) ([]entities.Label, error)
	Update(ctx context.Context, label *entities.Label) error
	Delete(ctx context.Context, id int64) error
}

// TaskRepository defines the interface for task data operations.
// Mutations take an optional activity entry that is written in the same
// transaction as the task rows.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task, labelIDs []int64, activity *entities.ActivityLog) error
	GetByID(ctx context.Context, id int64) (*entities.TaskDetails, error)
	// Update writes the task columns. A nil labelIDs leaves the label set
	// unchanged; a non-nil slice replaces it.
	Update(ctx context.Context, task *entities.Task, labelIDs []int64, activity *entities.ActivityLog) error
	Delete(ctx context.Context, id int64, activity *entities.ActivityLog) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.TaskDetails, int, error)
	StatusCounts(ctx context.Context) (entities.StatusCounts, error)
}

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *entities.Comment) error
	GetByID(ctx context.Context, id int64) (*entities.CommentDetails, error)
	ListByTask(ctx context.Context, taskID int64) ([]*entities.CommentDetails, error)
	Update(ctx context.Context, comment *entities.Comment) error
	Delete(ctx context.Context, id int64) error
}

// AttachmentRepository defines the interface for attachment records
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *entities.Attachment) error
	GetByID(ctx context.Context, id int64) (*entities.AttachmentDetails, error)
	ListByTask(ctx context.Context, taskID int64) ([]*entities.AttachmentDetails, error)
	Delete(ctx context.Context, id int64) error
	// FilePathsByTask and FilePathsByUploader return the stored paths that a
	// cascading delete of the task or user would orphan.
	FilePathsByTask(ctx context.Context, taskID int64) ([]string, error)
	FilePathsByUploader(ctx context.Context, userID int64) ([]string, error)
}

// ActivityRepository reads the activity ledger
type ActivityRepository interface {
	Recent(ctx context.Context, limit int) ([]*entities.ActivityDetails, error)
}

// StatsRepository runs dashboard aggregations
type StatsRepository interface {
	DashboardCounts(ctx context.Context, today, weekStart time.Time) (*entities.DashboardCounts, error)
}

// AuthRepository defines the interface for refresh token storage
type AuthRepository interface {
	CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID int64) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// FileInfo describes a stored file. Size is 0 and ContentType empty when the
// file cannot be read.
type FileInfo struct {
	Exists      bool
	Size        int64
	ContentType string
}

// FileStore persists attachment bytes.
type FileStore interface {
	// Save writes r under the requested path and returns the path actually
	// used, which differs when the requested one is taken.
	Save(ctx context.Context, path string, r io.Reader) (string, int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	// Delete removes the file; a missing file is not an error.
	Delete(ctx context.Context, path string) error
}

// Filter types for repository queries
type UserFilter struct {
	Search string
}

type TaskFilter struct {
	Status     *entities.TaskStatus
	AssigneeID *int64
	LabelIDs   []int64
	Search     string
	// Limit 0 returns every match.
	Limit  int
	Offset int
}

// RefreshToken represents a refresh token record
type RefreshToken struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	TokenHash string     `json:"token_hash" db:"token_hash"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	RevokedAt *time.Time `json:"revoked_at" db:"revoked_at"`
}

// IsExpired checks if the refresh token is expired
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// IsRevoked checks if the refresh token is revoked
func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

// IsValid checks if the refresh token is valid
func (rt *RefreshToken) IsValid() bool {
	return !rt.IsExpired() && !rt.IsRevoked()
}
