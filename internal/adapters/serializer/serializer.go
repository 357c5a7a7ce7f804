// Package serializer maps domain records to their JSON wire shape.
package serializer

import (
	"fmt"
	"strings"
	"time"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

// User is the public view of an account.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Color      string    `json:"color"`
	Avatar     *string   `json:"avatar"`
	DateJoined time.Time `json:"dateJoined"`
}

type Label struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task carries full label objects and live relation counts.
type Task struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Status          entities.TaskStatus `json:"status"`
	AssigneeName    *string             `json:"assigneeName"`
	DueDate         string              `json:"dueDate"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Labels          []Label             `json:"labels"`
	AttachmentCount int                 `json:"attachmentCount"`
	CommentCount    int                 `json:"commentCount"`
}

type Comment struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	AuthorID    int64     `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	AuthorColor string    `json:"authorColor"`
	TaskID      int64     `json:"taskId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Attachment reports size 0 and an empty type when the file is missing.
type Attachment struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	OriginalName   string    `json:"originalName"`
	URL            string    `json:"url"`
	Type           string    `json:"type"`
	Size           int64     `json:"size"`
	TaskID         int64     `json:"taskId"`
	UploadedBy     int64     `json:"uploadedBy"`
	UploadedByName string    `json:"uploadedByName"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

type Activity struct {
	ID         int64                 `json:"id"`
	Type       entities.ActivityType `json:"type"`
	Message    string                `json:"message"`
	UserID     int64                 `json:"userId"`
	UserName   string                `json:"userName"`
	TaskID     *int64                `json:"taskId"`
	TaskTitle  *string               `json:"taskTitle"`
	FromStatus *entities.TaskStatus  `json:"fromStatus"`
	ToStatus   *entities.TaskStatus  `json:"toStatus"`
	CreatedAt  time.Time             `json:"createdAt"`
}

type DashboardStats struct {
	TotalTasks        int `json:"totalTasks"`
	TodoTasks         int `json:"todoTasks"`
	InProgressTasks   int `json:"inProgressTasks"`
	DoneTasks         int `json:"doneTasks"`
	OverdueTasks      int `json:"overdueTasks"`
	TotalUsers        int `json:"totalUsers"`
	TasksThisWeek     int `json:"tasksThisWeek"`
	CompletedThisWeek int `json:"completedThisWeek"`
}

type TaskAnalytics struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inprogress"`
	Done       int `json:"done"`
}

// AuthPayload is returned by register, login and refresh.
type AuthPayload struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

func SerializeUser(u *entities.User) User {
	return User{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Color:      u.Color,
		Avatar:     u.Avatar,
		DateJoined: u.DateJoined.UTC(),
	}
}

func SerializeUsers(users []*entities.User) []User {
	out := make([]User, 0, len(users))
	for _, u := range users {
		out = append(out, SerializeUser(u))
	}
	return out
}

func SerializeLabel(l entities.Label) Label {
	return Label{
		ID:        l.ID,
		Name:      l.Name,
		Color:     l.Color,
		CreatedAt: l.CreatedAt.UTC(),
	}
}

func SerializeLabels(labels []entities.Label) []Label {
	out := make([]Label, 0, len(labels))
	for _, l := range labels {
		out = append(out, SerializeLabel(l))
	}
	return out
}

func SerializeTask(t *entities.TaskDetails) Task {
	var assigneeName *string
	if t.AssigneeID != nil && t.AssigneeName != nil {
		name := *t.AssigneeName
		assigneeName = &name
	}

	return Task{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		AssigneeName:    assigneeName,
		DueDate:         t.DueDateString(),
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
		Labels:          SerializeLabels(t.Labels),
		AttachmentCount: t.AttachmentCount,
		CommentCount:    t.CommentCount,
	}
}

func SerializeTasks(tasks []*entities.TaskDetails) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, SerializeTask(t))
	}
	return out
}

func SerializeComment(c *entities.CommentDetails) Comment {
	return Comment{
		ID:          c.ID,
		Content:     c.Content,
		AuthorID:    c.AuthorID,
		AuthorName:  c.AuthorName,
		AuthorColor: c.AuthorColor,
		TaskID:      c.TaskID,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func SerializeComments(comments []*entities.CommentDetails) []Comment {
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		out = append(out, SerializeComment(c))
	}
	return out
}

// AttachmentURL is the download location of an attachment.
func AttachmentURL(baseURL string, id int64) string {
	return fmt.Sprintf("%s/api/attachments/%d/download", strings.TrimRight(baseURL, "/"), id)
}

func SerializeAttachment(r ports.AttachmentResult, baseURL string) Attachment {
	a := r.Attachment
	out := Attachment{
		ID:             a.ID,
		Name:           a.Name(),
		OriginalName:   a.OriginalName,
		URL:            AttachmentURL(baseURL, a.ID),
		TaskID:         a.TaskID,
		UploadedBy:     a.UploadedBy,
		UploadedByName: a.UploadedByName,
		UploadedAt:     a.UploadedAt.UTC(),
	}
	if r.File.Exists {
		out.Type = r.File.ContentType
		out.Size = r.File.Size
	}
	return out
}

func SerializeAttachments(results []ports.AttachmentResult, baseURL string) []Attachment {
	out := make([]Attachment, 0, len(results))
	for _, r := range results {
		out = append(out, SerializeAttachment(r, baseURL))
	}
	return out
}

func SerializeActivity(a *entities.ActivityDetails) Activity {
	out := Activity{
		ID:         a.ID,
		Type:       a.Type,
		Message:    a.Message,
		UserID:     a.UserID,
		UserName:   a.UserName,
		TaskID:     a.TaskID,
		FromStatus: a.FromStatus,
		ToStatus:   a.ToStatus,
		CreatedAt:  a.CreatedAt.UTC(),
	}
	if a.TaskID != nil {
		out.TaskTitle = a.TaskTitle
	}
	return out
}

func SerializeActivities(entries []*entities.ActivityDetails) []Activity {
	out := make([]Activity, 0, len(entries))
	for _, a := range entries {
		out = append(out, SerializeActivity(a))
	}
	return out
}

func SerializeDashboardStats(c *entities.DashboardCounts) DashboardStats {
	return DashboardStats{
		TotalTasks:        c.Total,
		TodoTasks:         c.Todo,
		InProgressTasks:   c.InProgress,
		DoneTasks:         c.Done,
		OverdueTasks:      c.Overdue,
		TotalUsers:        c.TotalUsers,
		TasksThisWeek:     c.CreatedThisWeek,
		CompletedThisWeek: c.CompletedThisWeek,
	}
}

func SerializeTaskAnalytics(c entities.StatusCounts) TaskAnalytics {
	return TaskAnalytics{Todo: c.Todo, InProgress: c.InProgress, Done: c.Done}
}

func SerializeAuth(r *ports.AuthResult) AuthPayload {
	return AuthPayload{
		User:         SerializeUser(r.User),
		Token:        r.Token,
		RefreshToken: r.RefreshToken,
	}
}
