package services

import (
	"context"
	"strings"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// LabelService handles label operations
type LabelService struct {
	labelRepo ports.LabelRepository
	logger    *logger.Logger
}

// NewLabelService creates a new label service
func NewLabelService(labelRepo ports.LabelRepository, logger *logger.Logger) *LabelService {
	return &LabelService{
		labelRepo: labelRepo,
		logger:    logger.WithComponent("labels"),
	}
}

func (s *LabelService) ListLabels(ctx context.Context) ([]entities.Label, error) {
	return s.labelRepo.List(ctx)
}

func (s *LabelService) CreateLabel(ctx context.Context, req ports.LabelRequest) (*entities.Label, error) {
	label := &entities.Label{}
	if err := applyLabel(label, req); err != nil {
		return nil, err
	}

	if err := s.labelRepo.Create(ctx, label); err != nil {
		return nil, err
	}

	s.logger.Infow("Label created", "label_id", label.ID, "name", label.Name)
	return label, nil
}

func (s *LabelService) UpdateLabel(ctx context.Context, id int64, req ports.LabelRequest) (*entities.Label, error) {
	label, err := s.labelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyLabel(label, req); err != nil {
		return nil, err
	}

	if err := s.labelRepo.Update(ctx, label); err != nil {
		return nil, err
	}
	return label, nil
}

// DeleteLabel removes the label from every task that carried it.
func (s *LabelService) DeleteLabel(ctx context.Context, id int64) error {
	if err := s.labelRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Infow("Label deleted", "label_id", id)
	return nil
}

func applyLabel(label *entities.Label, req ports.LabelRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return requiredField("name")
	}
	if err := maxLength("name", name, maxLabelNameLength); err != nil {
		return err
	}

	color := strings.TrimSpace(req.Color)
	if err := fieldValidator.Var(color, "required,hexcolor,len=7"); err != nil {
		msg := "Enter a 7-character hex color such as #3B82F6."
		return entities.NewFieldValidationError(msg, map[string]string{"color": msg})
	}

	label.Name = name
	label.Color = color
	return nil
}
