package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

const (
	maxOriginalNameLength = 255
	// Stored basenames leave room for the collision suffix within the
	// 255-byte name limit of common filesystems.
	maxStoredNameLength = 100
	maxStoredNameBytes  = 200
)

// AttachmentService keeps attachment records and their stored files
// together.
type AttachmentService struct {
	attachmentRepo ports.AttachmentRepository
	taskRepo       ports.TaskRepository
	files          ports.FileStore
	logger         *logger.Logger
}

// NewAttachmentService creates a new attachment service
func NewAttachmentService(attachmentRepo ports.AttachmentRepository, taskRepo ports.TaskRepository, files ports.FileStore, logger *logger.Logger) *AttachmentService {
	return &AttachmentService{
		attachmentRepo: attachmentRepo,
		taskRepo:       taskRepo,
		files:          files,
		logger:         logger.WithComponent("attachments"),
	}
}

func (s *AttachmentService) ListAttachments(ctx context.Context, taskID int64) ([]ports.AttachmentResult, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	attachments, err := s.attachmentRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	results := make([]ports.AttachmentResult, 0, len(attachments))
	for _, a := range attachments {
		results = append(results, s.withFile(ctx, a))
	}
	return results, nil
}

// CreateAttachment stores the upload under attachments/task_<id>/ and
// records it. The file is removed again when the record cannot be written.
func (s *AttachmentService) CreateAttachment(ctx context.Context, callerID, taskID int64, upload *ports.FileUpload) (*ports.AttachmentResult, error) {
	if upload == nil || upload.Reader == nil {
		return nil, entities.ErrFileRequired
	}

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	name := safeFileName(upload.Name)
	stored, size, err := s.files.Save(ctx, fmt.Sprintf("attachments/task_%d/%s", taskID, name), upload.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	originalName := strings.TrimSpace(upload.Name)
	if originalName == "" {
		originalName = name
	}
	originalName = truncateName(originalName, maxOriginalNameLength, 0)

	attachment := &entities.Attachment{
		TaskID:       taskID,
		UploadedBy:   callerID,
		FilePath:     stored,
		OriginalName: originalName,
	}
	if err := s.attachmentRepo.Create(ctx, attachment); err != nil {
		if delErr := s.files.Delete(ctx, stored); delErr != nil {
			s.logger.WithError(delErr).Warnw("Failed to remove orphaned upload", "path", stored)
		}
		return nil, err
	}

	s.logger.LogUserAction(callerID, "attachment_uploaded", map[string]interface{}{
		"task_id":       taskID,
		"attachment_id": attachment.ID,
		"size":          size,
	})

	details, err := s.attachmentRepo.GetByID(ctx, attachment.ID)
	if err != nil {
		return nil, err
	}
	result := s.withFile(ctx, details)
	return &result, nil
}

// DeleteAttachment removes the stored file and then the record. Only the
// uploader may delete. A file that is already gone does not block removal.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, callerID, id int64) error {
	attachment, err := s.attachmentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if attachment.UploadedBy != callerID {
		s.logger.LogSecurityEvent("attachment_delete_denied", callerID, map[string]interface{}{"attachment_id": id})
		return entities.NewPermissionError("You can only delete your own attachments")
	}

	if err := s.files.Delete(ctx, attachment.FilePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return s.attachmentRepo.Delete(ctx, id)
}

// OpenAttachment returns the record and a reader over the stored bytes. The
// caller closes the reader.
func (s *AttachmentService) OpenAttachment(ctx context.Context, id int64) (*ports.AttachmentResult, io.ReadCloser, error) {
	attachment, err := s.attachmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	result := s.withFile(ctx, attachment)
	if !result.File.Exists {
		return nil, nil, entities.ErrFileNotFound
	}

	rc, err := s.files.Open(ctx, attachment.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return &result, rc, nil
}

// withFile resolves size and type. Files that cannot be read report zero
// values rather than failing the listing.
func (s *AttachmentService) withFile(ctx context.Context, a *entities.AttachmentDetails) ports.AttachmentResult {
	info, err := s.files.Stat(ctx, a.FilePath)
	if err != nil {
		s.logger.WithError(err).Warnw("Failed to stat attachment", "attachment_id", a.ID)
		info = ports.FileInfo{}
	}
	return ports.AttachmentResult{Attachment: a, File: info}
}

// safeFileName reduces an uploaded file name to a bare basename.
func safeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return "file"
	}
	return truncateName(name, maxStoredNameLength, maxStoredNameBytes)
}

// truncateName shortens name to at most maxRunes characters and, when
// maxBytes is positive, maxBytes bytes. Characters are dropped from the end
// of the stem so the extension survives.
func truncateName(name string, maxRunes, maxBytes int) string {
	fits := func(s string) bool {
		return utf8.RuneCountInString(s) <= maxRunes && (maxBytes <= 0 || len(s) <= maxBytes)
	}
	if fits(name) {
		return name
	}

	ext := path.Ext(name)
	if 2*utf8.RuneCountInString(ext) > maxRunes || (maxBytes > 0 && 2*len(ext) > maxBytes) {
		ext = ""
	}

	stem := []rune(strings.TrimSuffix(name, ext))
	for len(stem) > 0 && !fits(string(stem)+ext) {
		stem = stem[:len(stem)-1]
	}
	return string(stem) + ext
}
