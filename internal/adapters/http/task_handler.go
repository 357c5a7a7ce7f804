package http

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/config"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService *services.TaskService
	pagination  config.PaginationConfig
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *services.TaskService, pagination config.PaginationConfig, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		pagination:  pagination,
		logger:      logger,
	}
}

// ListTasks godoc
// @Summary List tasks
// @Description Paginated task list ordered by id
// @Tags tasks
// @Produce json
// @Param status query string false "todo, inprogress or done"
// @Param assignee query int false "Assignee user id"
// @Param labels query string false "Comma-separated label ids"
// @Param q query string false "Title or description substring"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} serializer.TaskPage
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	filter, err := taskFilterFromQuery(c)
	if err != nil {
		return err
	}

	page, pageSize, err := h.pageParams(c)
	if err != nil {
		return err
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	tasks, total, err := h.taskService.ListTasks(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if page > 1 && filter.Offset >= total {
		return entities.NewNotFoundError("Invalid page.")
	}

	return c.JSON(http.StatusOK, serializer.NewTaskPage(serializer.SerializeTasks(tasks), total, page, pageSize, requestURL(c)))
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateTaskRequest true "Task data"
// @Success 201 {object} serializer.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}
	req.Normalize()
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), callerID(c), req)
	if err != nil {
		return err
	}

	return created(c, serializer.SerializeTask(task))
}

func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeTask(task))
}

// UpdateTask applies a partial update. PUT and PATCH behave the same.
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	keys, err := bindJSONWithKeys(c, &req)
	if err != nil {
		return err
	}
	if req.AssigneeID, err = optionalID(keys, "assigneeId"); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), callerID(c), id, req)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeTask(task))
}

// UpdateTaskStatus godoc
// @Summary Move a task to another status
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path int true "Task ID"
// @Param request body ports.UpdateStatusRequest true "New status"
// @Success 200 {object} serializer.Task
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *TaskHandler) UpdateTaskStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTaskStatus(c.Request().Context(), callerID(c), id, req.Status)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeTask(task))
}

// UpdateTaskAssignee sets or clears the assignee. An explicit null clears.
func (h *TaskHandler) UpdateTaskAssignee(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateAssigneeRequest
	keys, err := bindJSONWithKeys(c, &req)
	if err != nil {
		return err
	}
	if req.AssigneeID, err = optionalID(keys, "assigneeId"); err != nil {
		return err
	}

	task, err := h.taskService.UpdateTaskAssignee(c.Request().Context(), callerID(c), id, req.AssigneeID)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeTask(task))
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}

	return message(c, "Task deleted")
}

// pageParams reads page and page_size. An unusable page_size falls back to
// the default and a large one is capped.
func (h *TaskHandler) pageParams(c echo.Context) (int, int, error) {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			return 0, 0, entities.NewNotFoundError("Invalid page.")
		}
		page = p
	}

	size := h.pagination.DefaultPageSize
	if raw := c.QueryParam("page_size"); raw != "" {
		if s, err := strconv.Atoi(raw); err == nil && s > 0 {
			size = s
		}
	}
	if size > h.pagination.MaxPageSize {
		size = h.pagination.MaxPageSize
	}

	// (page-1)*size must fit in an int offset.
	if page-1 > (math.MaxInt-1)/size {
		return 0, 0, entities.NewNotFoundError("Invalid page.")
	}

	return page, size, nil
}

// taskFilterFromQuery reads status, assignee, labels and q.
func taskFilterFromQuery(c echo.Context) (ports.TaskFilter, error) {
	var filter ports.TaskFilter

	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		status := entities.TaskStatus(raw)
		if !status.IsValid() {
			return filter, entities.ErrInvalidStatus
		}
		filter.Status = &status
	}

	if raw := strings.TrimSpace(c.QueryParam("assignee")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			msg := "Enter a number."
			return filter, entities.NewFieldValidationError(msg, map[string]string{"assignee": msg})
		}
		filter.AssigneeID = &id
	}

	labelIDs, err := parseIDList(c.QueryParam("labels"), "labels")
	if err != nil {
		return filter, err
	}
	filter.LabelIDs = labelIDs

	filter.Search = strings.TrimSpace(c.QueryParam("q"))
	if filter.Search == "" {
		filter.Search = strings.TrimSpace(c.QueryParam("search"))
	}

	return filter, nil
}

// requestURL is the absolute URL of the current request.
func requestURL(c echo.Context) *url.URL {
	req := c.Request()
	u := *req.URL
	u.Scheme = c.Scheme()
	u.Host = req.Host
	return &u
}
