package services

import (
	"context"
	"strings"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// CommentService handles task comments. Only the author may edit or delete
// a comment.
type CommentService struct {
	commentRepo ports.CommentRepository
	taskRepo    ports.TaskRepository
	logger      *logger.Logger
}

// NewCommentService creates a new comment service
func NewCommentService(commentRepo ports.CommentRepository, taskRepo ports.TaskRepository, logger *logger.Logger) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		logger:      logger.WithComponent("comments"),
	}
}

func (s *CommentService) ListComments(ctx context.Context, taskID int64) ([]*entities.CommentDetails, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByTask(ctx, taskID)
}

func (s *CommentService) CreateComment(ctx context.Context, callerID, taskID int64, req ports.CommentRequest) (*entities.CommentDetails, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, requiredField("content")
	}

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	comment := &entities.Comment{
		TaskID:   taskID,
		AuthorID: callerID,
		Content:  req.Content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.logger.LogUserAction(callerID, "comment_created", map[string]interface{}{"task_id": taskID, "comment_id": comment.ID})
	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) UpdateComment(ctx context.Context, callerID, id int64, req ports.CommentRequest) (*entities.CommentDetails, error) {
	current, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.AuthorID != callerID {
		s.logger.LogSecurityEvent("comment_edit_denied", callerID, map[string]interface{}{"comment_id": id})
		return nil, entities.NewPermissionError("You can only edit your own comments")
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, requiredField("content")
	}

	comment := current.Comment
	comment.Content = req.Content
	if err := s.commentRepo.Update(ctx, &comment); err != nil {
		return nil, err
	}

	return s.commentRepo.GetByID(ctx, id)
}

func (s *CommentService) DeleteComment(ctx context.Context, callerID, id int64) error {
	current, err := s.commentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if current.AuthorID != callerID {
		s.logger.LogSecurityEvent("comment_delete_denied", callerID, map[string]interface{}{"comment_id": id})
		return entities.NewPermissionError("You can only delete your own comments")
	}

	return s.commentRepo.Delete(ctx, id)
}
