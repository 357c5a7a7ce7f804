package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// Column limits, in characters.
const (
	maxTitleLength     = 255
	maxLabelNameLength = 100
	maxUsernameLength  = 150
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo       ports.TaskRepository
	userRepo       ports.UserRepository
	labelRepo      ports.LabelRepository
	attachmentRepo ports.AttachmentRepository
	files          ports.FileStore
	logger         *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(
	taskRepo ports.TaskRepository,
	userRepo ports.UserRepository,
	labelRepo ports.LabelRepository,
	attachmentRepo ports.AttachmentRepository,
	files ports.FileStore,
	logger *logger.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:       taskRepo,
		userRepo:       userRepo,
		labelRepo:      labelRepo,
		attachmentRepo: attachmentRepo,
		files:          files,
		logger:         logger.WithComponent("tasks"),
	}
}

// CreateTask creates a new task. callerID is 0 for anonymous callers, in
// which case no activity entry is written.
func (s *TaskService) CreateTask(ctx context.Context, callerID int64, req ports.CreateTaskRequest) (*entities.TaskDetails, error) {
	req.Normalize()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, requiredField("title")
	}
	if err := maxLength("title", title, maxTitleLength); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, requiredField("description")
	}

	if req.DueDate == "" {
		return nil, requiredField("dueDate")
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = entities.TaskStatusTodo
	}
	if !status.IsValid() {
		return nil, entities.ErrInvalidStatus
	}

	var assigneeID *int64
	if req.AssigneeID != nil {
		id := int64(*req.AssigneeID)
		if err := s.ensureUserExists(ctx, id); err != nil {
			return nil, err
		}
		assigneeID = &id
	}

	labelIDs := ports.Int64s(req.LabelIDs)
	if err := s.ensureLabelsExist(ctx, labelIDs); err != nil {
		return nil, err
	}

	task := &entities.Task{
		Title:       title,
		Description: req.Description,
		Status:      status,
		AssigneeID:  assigneeID,
		DueDate:     dueDate,
	}

	var activity *entities.ActivityLog
	if callerID != 0 {
		activity = entities.NewTaskActivity(entities.ActivityTaskCreated, task, callerID, fmt.Sprintf("Task %q created", task.Title))
	}

	if err := s.taskRepo.Create(ctx, task, labelIDs, activity); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if activity != nil {
		s.logger.LogActivity(activity)
	} else {
		s.logger.Infow("Task created anonymously", "task_id", task.ID)
	}

	return s.taskRepo.GetByID(ctx, task.ID)
}

// GetTask retrieves a task by ID
func (s *TaskService) GetTask(ctx context.Context, id int64) (*entities.TaskDetails, error) {
	return s.taskRepo.GetByID(ctx, id)
}

// ListTasks returns a page of tasks and the total number of matches.
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.TaskDetails, int, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, entities.ErrInvalidStatus
	}
	return s.taskRepo.List(ctx, filter)
}

// UpdateTask applies a partial update. Absent fields keep their value and
// labels are replaced only when labelIds is present. A status change is
// logged as a move, anything else as an update.
func (s *TaskService) UpdateTask(ctx context.Context, callerID, id int64, req ports.UpdateTaskRequest) (*entities.TaskDetails, error) {
	req.Normalize()

	current, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	task := current.Task

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, requiredField("title")
		}
		if err := maxLength("title", title, maxTitleLength); err != nil {
			return nil, err
		}
		task.Title = title
	}

	if req.Description != nil {
		if strings.TrimSpace(*req.Description) == "" {
			return nil, requiredField("description")
		}
		task.Description = *req.Description
	}

	if req.DueDate != nil {
		dueDate, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = dueDate
	}

	if req.AssigneeID.Set {
		if req.AssigneeID.Value != nil {
			if err := s.ensureUserExists(ctx, *req.AssigneeID.Value); err != nil {
				return nil, err
			}
		}
		task.AssigneeID = req.AssigneeID.Value
	}

	var labelIDs []int64
	if req.LabelIDs != nil {
		labelIDs = ports.Int64s(*req.LabelIDs)
		if err := s.ensureLabelsExist(ctx, labelIDs); err != nil {
			return nil, err
		}
	}

	var activity *entities.ActivityLog
	if req.Status != nil {
		activity, err = task.MoveTo(*req.Status, callerID)
		if err != nil {
			return nil, err
		}
	}
	if activity == nil {
		activity = entities.NewTaskActivity(entities.ActivityTaskUpdated, &task, callerID, fmt.Sprintf("Task %q updated", task.Title))
	}

	if err := s.taskRepo.Update(ctx, &task, labelIDs, activity); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.LogActivity(activity)

	return s.taskRepo.GetByID(ctx, task.ID)
}

// UpdateTaskStatus moves a task to another column. Any authenticated user
// may move any task.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, callerID, id int64, status entities.TaskStatus) (*entities.TaskDetails, error) {
	current, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	task := current.Task

	activity, err := task.MoveTo(status, callerID)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(ctx, &task, nil, activity); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	s.logger.LogActivity(activity)

	return s.taskRepo.GetByID(ctx, task.ID)
}

// UpdateTaskAssignee sets or clears the assignee. The key must be present;
// an explicit null clears it.
func (s *TaskService) UpdateTaskAssignee(ctx context.Context, callerID, id int64, assignee ports.OptionalID) (*entities.TaskDetails, error) {
	if !assignee.Set {
		return nil, requiredField("assigneeId")
	}

	current, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	task := current.Task

	message := fmt.Sprintf("Task %q unassigned", task.Title)
	if assignee.Value != nil {
		user, err := s.userRepo.GetByID(ctx, *assignee.Value)
		if err != nil {
			if errors.Is(err, entities.ErrNotFound) {
				return nil, invalidReference("assigneeId", *assignee.Value)
			}
			return nil, err
		}
		message = fmt.Sprintf("Task %q assigned to %s", task.Title, user.Username)
	}
	task.AssigneeID = assignee.Value

	activity := entities.NewTaskActivity(entities.ActivityTaskUpdated, &task, callerID, message)
	if err := s.taskRepo.Update(ctx, &task, nil, activity); err != nil {
		return nil, fmt.Errorf("failed to update task assignee: %w", err)
	}
	s.logger.LogActivity(activity)

	return s.taskRepo.GetByID(ctx, task.ID)
}

// DeleteTask removes a task with its comments and attachments, then the
// attachment files.
func (s *TaskService) DeleteTask(ctx context.Context, callerID, id int64) error {
	current, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	paths, err := s.attachmentRepo.FilePathsByTask(ctx, id)
	if err != nil {
		return err
	}

	activity := entities.NewTaskActivity(entities.ActivityTaskDeleted, &current.Task, callerID, fmt.Sprintf("Task %q deleted", current.Title))
	if err := s.taskRepo.Delete(ctx, id, activity); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	removeFiles(ctx, s.files, s.logger, paths)

	s.logger.LogActivity(activity)
	return nil
}

func (s *TaskService) ensureUserExists(ctx context.Context, id int64) error {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return invalidReference("assigneeId", id)
		}
		return err
	}
	return nil
}

func (s *TaskService) ensureLabelsExist(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	labels, err := s.labelRepo.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}

	found := make(map[int64]bool, len(labels))
	for _, l := range labels {
		found[l.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return invalidReference("labelIds", id)
		}
	}
	return nil
}

func parseDueDate(value string) (time.Time, error) {
	d, err := time.Parse(entities.DateLayout, strings.TrimSpace(value))
	if err != nil {
		msg := "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
		return time.Time{}, entities.NewFieldValidationError(msg, map[string]string{"dueDate": msg})
	}
	return d, nil
}

func requiredField(field string) error {
	return entities.NewFieldValidationError(fmt.Sprintf("%s is required.", field), map[string]string{field: "This field is required."})
}

// maxLength rejects values longer than limit characters. Limits count
// runes, matching VARCHAR(n).
func maxLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) <= limit {
		return nil
	}
	return entities.NewFieldValidationError(
		fmt.Sprintf("Ensure %s has no more than %d characters.", field, limit),
		map[string]string{field: fmt.Sprintf("Ensure this field has no more than %d characters.", limit)},
	)
}

func invalidReference(field string, id int64) error {
	msg := fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)
	return entities.NewFieldValidationError(msg, map[string]string{field: msg})
}
