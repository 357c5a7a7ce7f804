package http

import (
	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// LabelHandler handles label requests
type LabelHandler struct {
	labelService *services.LabelService
	logger       *logger.Logger
}

// NewLabelHandler creates a new label handler
func NewLabelHandler(labelService *services.LabelService, logger *logger.Logger) *LabelHandler {
	return &LabelHandler{
		labelService: labelService,
		logger:       logger,
	}
}

// ListLabels godoc
// @Summary List labels
// @Tags labels
// @Produce json
// @Success 200 {array} serializer.Label
// @Router /labels [get]
func (h *LabelHandler) ListLabels(c echo.Context) error {
	labels, err := h.labelService.ListLabels(c.Request().Context())
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeLabels(labels))
}

// CreateLabel godoc
// @Summary Create a label
// @Tags labels
// @Accept json
// @Produce json
// @Param request body ports.LabelRequest true "Label data"
// @Success 201 {object} serializer.Label
// @Failure 400 {object} ErrorResponse
// @Router /labels [post]
func (h *LabelHandler) CreateLabel(c echo.Context) error {
	var req ports.LabelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	label, err := h.labelService.CreateLabel(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return created(c, serializer.SerializeLabel(*label))
}

func (h *LabelHandler) UpdateLabel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.LabelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	label, err := h.labelService.UpdateLabel(c.Request().Context(), id, req)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeLabel(*label))
}

func (h *LabelHandler) DeleteLabel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.labelService.DeleteLabel(c.Request().Context(), id); err != nil {
		return err
	}

	return message(c, "Label deleted")
}
