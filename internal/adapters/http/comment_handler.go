package http

import (
	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// CommentHandler handles task comments
type CommentHandler struct {
	commentService *services.CommentService
	logger         *logger.Logger
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(commentService *services.CommentService, logger *logger.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		logger:         logger,
	}
}

// ListComments godoc
// @Summary List the comments of a task
// @Tags comments
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {array} serializer.Comment
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/comments [get]
func (h *CommentHandler) ListComments(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	comments, err := h.commentService.ListComments(c.Request().Context(), taskID)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeComments(comments))
}

func (h *CommentHandler) CreateComment(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.CommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.commentService.CreateComment(c.Request().Context(), callerID(c), taskID, req)
	if err != nil {
		return err
	}

	return created(c, serializer.SerializeComment(comment))
}

// UpdateComment edits a comment. Only its author may do so.
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.CommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.commentService.UpdateComment(c.Request().Context(), callerID(c), id, req)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeComment(comment))
}

func (h *CommentHandler) DeleteComment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.commentService.DeleteComment(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}

	return message(c, "Comment deleted")
}
