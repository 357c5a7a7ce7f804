package services

import (
	"context"
	"strings"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

// SearchService runs unpaginated task and user searches.
type SearchService struct {
	taskRepo ports.TaskRepository
	userRepo ports.UserRepository
}

// NewSearchService creates a new search service
func NewSearchService(taskRepo ports.TaskRepository, userRepo ports.UserRepository) *SearchService {
	return &SearchService{
		taskRepo: taskRepo,
		userRepo: userRepo,
	}
}

// SearchTasks returns every task matching the filter. Limit and Offset are
// ignored.
func (s *SearchService) SearchTasks(ctx context.Context, filter ports.TaskFilter) (*ports.TaskSearchResult, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, entities.ErrInvalidStatus
	}

	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit, filter.Offset = 0, 0

	tasks, total, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ports.TaskSearchResult{Tasks: tasks, Total: total}, nil
}

func (s *SearchService) SearchUsers(ctx context.Context, query string) ([]*entities.User, error) {
	return s.userRepo.List(ctx, ports.UserFilter{Search: strings.TrimSpace(query)})
}

// Global searches tasks and users independently with the same query.
func (s *SearchService) Global(ctx context.Context, query string) (*ports.GlobalSearchResult, error) {
	query = strings.TrimSpace(query)

	tasks, _, err := s.taskRepo.List(ctx, ports.TaskFilter{Search: query})
	if err != nil {
		return nil, err
	}

	users, err := s.userRepo.List(ctx, ports.UserFilter{Search: query})
	if err != nil {
		return nil, err
	}

	return &ports.GlobalSearchResult{Tasks: tasks, Users: users}, nil
}
