package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// AttachmentHandler handles file uploads and downloads
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
	baseURL           string
	maxUploadSize     int64
	logger            *logger.Logger
}

// NewAttachmentHandler creates a new attachment handler. baseURL prefixes
// download links; uploads larger than maxUploadSize bytes are refused.
func NewAttachmentHandler(attachmentService *services.AttachmentService, baseURL string, maxUploadSize int64, logger *logger.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
		baseURL:           baseURL,
		maxUploadSize:     maxUploadSize,
		logger:            logger,
	}
}

func (h *AttachmentHandler) ListAttachments(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	results, err := h.attachmentService.ListAttachments(c.Request().Context(), taskID)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeAttachments(results, h.baseURL))
}

// UploadAttachment godoc
// @Summary Upload an attachment
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Task ID"
// @Param file formData file true "File"
// @Success 201 {object} serializer.Attachment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/attachments [post]
func (h *AttachmentHandler) UploadAttachment(c echo.Context) error {
	taskID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return entities.ErrFileRequired
		}
		return invalidRequest(err)
	}
	if h.maxUploadSize > 0 && header.Size > h.maxUploadSize {
		msg := fmt.Sprintf("Ensure the file is at most %d bytes.", h.maxUploadSize)
		return entities.NewFieldValidationError("File too large", map[string]string{"file": msg})
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := h.attachmentService.CreateAttachment(c.Request().Context(), callerID(c), taskID, &ports.FileUpload{
		Name:   header.Filename,
		Reader: file,
	})
	if err != nil {
		return err
	}

	return created(c, serializer.SerializeAttachment(*result, h.baseURL))
}

func (h *AttachmentHandler) DeleteAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.attachmentService.DeleteAttachment(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}

	return message(c, "Attachment deleted")
}

// DownloadAttachment streams the stored bytes under the original file name.
func (h *AttachmentHandler) DownloadAttachment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	result, rc, err := h.attachmentService.OpenAttachment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := result.File.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.Attachment.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, disposition)

	return c.Stream(http.StatusOK, contentType, rc)
}
