package ports

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/taskboard/kanban/internal/domain/entities"
)

// Request/Response Types

// FlexID accepts a JSON number or a numeric string.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return entities.NewValidationError("Invalid id: " + s)
		}
		*f = FlexID(id)
		return nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*f = FlexID(id)
	return nil
}

// OptionalID distinguishes an absent key from an explicit null.
type OptionalID struct {
	Set   bool
	Value *int64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" || string(trimmed) == `""` {
		o.Value = nil
		return nil
	}

	var id FlexID
	if err := id.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	v := int64(id)
	o.Value = &v
	return nil
}

// Int64s converts a list of FlexIDs.
func Int64s(ids []FlexID) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

// Auth related types
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Username string `json:"username" validate:"max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResult struct {
	User         *entities.User
	Token        string
	RefreshToken string
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// User related types
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,max=150"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Color    *string `json:"color" validate:"omitempty,hexcolor,len=7"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

// Label related types
type LabelRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"required,hexcolor,len=7"`
}

// Task related types
type CreateTaskRequest struct {
	Title        string              `json:"title" validate:"required,max=255"`
	Description  string              `json:"description" validate:"required"`
	Status       entities.TaskStatus `json:"status" validate:"omitempty,oneof=todo inprogress done"`
	AssigneeID   *FlexID             `json:"assigneeId"`
	LabelIDs     []FlexID            `json:"labelIds"`
	DueDate      string              `json:"dueDate" validate:"required,datetime=2006-01-02"`
	DueDateAlias string              `json:"due_date"`
}

// Normalize folds the snake_case due date alias into DueDate.
func (r *CreateTaskRequest) Normalize() {
	if r.DueDate == "" {
		r.DueDate = r.DueDateAlias
	}
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title        *string              `json:"title" validate:"omitempty,max=255"`
	Description  *string              `json:"description"`
	Status       *entities.TaskStatus `json:"status" validate:"omitempty,oneof=todo inprogress done"`
	AssigneeID   OptionalID           `json:"assigneeId"`
	LabelIDs     *[]FlexID            `json:"labelIds"`
	DueDate      *string              `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	DueDateAlias *string              `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// Normalize folds the snake_case due date alias into DueDate.
func (r *UpdateTaskRequest) Normalize() {
	if r.DueDate == nil {
		r.DueDate = r.DueDateAlias
	}
}

type UpdateStatusRequest struct {
	Status entities.TaskStatus `json:"status" validate:"required"`
}

type UpdateAssigneeRequest struct {
	AssigneeID OptionalID `json:"assigneeId"`
}

// Comment related types
type CommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// FileUpload is an incoming attachment.
type FileUpload struct {
	Name   string
	Reader io.Reader
}

// Search related types
type TaskSearchResult struct {
	Tasks []*entities.TaskDetails
	Total int
}

type GlobalSearchResult struct {
	Tasks []*entities.TaskDetails
	Users []*entities.User
}

// AttachmentResult pairs an attachment record with facts about its file.
type AttachmentResult struct {
	Attachment *entities.AttachmentDetails
	File       FileInfo
}
