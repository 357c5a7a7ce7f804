package services

import (
	"context"
	"time"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// DashboardService computes board statistics.
type DashboardService struct {
	taskRepo     ports.TaskRepository
	statsRepo    ports.StatsRepository
	userRepo     ports.UserRepository
	activityRepo ports.ActivityRepository
	logger       *logger.Logger

	now func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	taskRepo ports.TaskRepository,
	statsRepo ports.StatsRepository,
	userRepo ports.UserRepository,
	activityRepo ports.ActivityRepository,
	logger *logger.Logger,
) *DashboardService {
	return &DashboardService{
		taskRepo:     taskRepo,
		statsRepo:    statsRepo,
		userRepo:     userRepo,
		activityRepo: activityRepo,
		logger:       logger.WithComponent("dashboard"),
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (s *DashboardService) WithClock(now func() time.Time) *DashboardService {
	s.now = now
	return s
}

// Stats returns task totals per status, overdue tasks and this week's
// created and completed counts. Weeks start Monday 00:00 UTC.
func (s *DashboardService) Stats(ctx context.Context) (*entities.DashboardCounts, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	counts, err := s.statsRepo.DashboardCounts(ctx, today, WeekStart(now))
	if err != nil {
		return nil, err
	}

	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	counts.TotalUsers = users

	return counts, nil
}

// RecentActivity returns the newest activity entries. A non-positive limit
// means the default of 20.
func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]*entities.ActivityDetails, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	return s.activityRepo.Recent(ctx, limit)
}

// TaskAnalytics returns the number of tasks in each status.
func (s *DashboardService) TaskAnalytics(ctx context.Context) (entities.StatusCounts, error) {
	return s.taskRepo.StatusCounts(ctx)
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}
