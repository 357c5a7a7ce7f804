package http

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
)

// DashboardHandler serves board statistics
type DashboardHandler struct {
	dashboardService *services.DashboardService
	logger           *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService, logger *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// Stats godoc
// @Summary Board statistics
// @Tags dashboard
// @Produce json
// @Success 200 {object} serializer.DashboardStats
// @Security BearerAuth
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c echo.Context) error {
	counts, err := h.dashboardService.Stats(c.Request().Context())
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeDashboardStats(counts))
}

// RecentActivity godoc
// @Summary Recent activity
// @Tags dashboard
// @Produce json
// @Param limit query int false "Number of entries (default 20)"
// @Success 200 {array} serializer.Activity
// @Security BearerAuth
// @Router /dashboard/activity [get]
func (h *DashboardHandler) RecentActivity(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			msg := "A valid integer is required."
			return entities.NewFieldValidationError(msg, map[string]string{"limit": msg})
		}
		limit = n
	}

	entries, err := h.dashboardService.RecentActivity(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeActivities(entries))
}

func (h *DashboardHandler) TaskAnalytics(c echo.Context) error {
	counts, err := h.dashboardService.TaskAnalytics(c.Request().Context())
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeTaskAnalytics(counts))
}
