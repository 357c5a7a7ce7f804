package http

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
)

// SearchHandler serves the search endpoints
type SearchHandler struct {
	searchService *services.SearchService
	logger        *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *services.SearchService, logger *logger.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// TaskSearchFilters echoes the filters applied to a task search.
type TaskSearchFilters struct {
	Status   []string `json:"status"`
	Labels   []string `json:"labels"`
	Assignee *string  `json:"assignee"`
}

type TaskSearchResponse struct {
	Tasks        []serializer.Task `json:"tasks"`
	TotalResults int               `json:"totalResults"`
	SearchQuery  string            `json:"searchQuery"`
	Filters      TaskSearchFilters `json:"filters"`
}

type UserSearchResponse struct {
	Users        []serializer.User `json:"users"`
	TotalResults int               `json:"totalResults"`
	SearchQuery  string            `json:"searchQuery"`
}

type GlobalSearchResponse struct {
	Query            string            `json:"query"`
	Tasks            []serializer.Task `json:"tasks"`
	Users            []serializer.User `json:"users"`
	TotalTaskResults int               `json:"totalTaskResults"`
	TotalUserResults int               `json:"totalUserResults"`
}

// SearchTasks godoc
// @Summary Search tasks
// @Tags search
// @Produce json
// @Param q query string false "Title or description substring"
// @Param status query string false "Status"
// @Param assignee query int false "Assignee user id"
// @Param labels query string false "Comma-separated label ids"
// @Success 200 {object} TaskSearchResponse
// @Security BearerAuth
// @Router /search/tasks [get]
func (h *SearchHandler) SearchTasks(c echo.Context) error {
	filter, err := taskFilterFromQuery(c)
	if err != nil {
		return err
	}

	result, err := h.searchService.SearchTasks(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	filters := TaskSearchFilters{Status: []string{}, Labels: []string{}}
	if filter.Status != nil {
		filters.Status = append(filters.Status, string(*filter.Status))
	}
	for _, id := range filter.LabelIDs {
		filters.Labels = append(filters.Labels, strconv.FormatInt(id, 10))
	}
	if raw := strings.TrimSpace(c.QueryParam("assignee")); raw != "" {
		filters.Assignee = &raw
	}

	return ok(c, TaskSearchResponse{
		Tasks:        serializer.SerializeTasks(result.Tasks),
		TotalResults: result.Total,
		SearchQuery:  c.QueryParam("q"),
		Filters:      filters,
	})
}

func (h *SearchHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")

	users, err := h.searchService.SearchUsers(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return ok(c, UserSearchResponse{
		Users:        serializer.SerializeUsers(users),
		TotalResults: len(users),
		SearchQuery:  query,
	})
}

// GlobalSearch searches tasks and users with the same query.
func (h *SearchHandler) GlobalSearch(c echo.Context) error {
	query := c.QueryParam("q")

	result, err := h.searchService.Global(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return ok(c, GlobalSearchResponse{
		Query:            query,
		Tasks:            serializer.SerializeTasks(result.Tasks),
		Users:            serializer.SerializeUsers(result.Users),
		TotalTaskResults: len(result.Tasks),
		TotalUserResults: len(result.Users),
	})
}
