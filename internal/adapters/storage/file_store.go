// Package storage keeps attachment bytes on an afero filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

// FileStoreImpl implements ports.FileStore on top of afero.
type FileStoreImpl struct {
	fs afero.Fs
}

// NewFileStore wraps an existing filesystem.
func NewFileStore(fs afero.Fs) ports.FileStore {
	return &FileStoreImpl{fs: fs}
}

// NewLocalFileStore stores files under root on the OS filesystem.
func NewLocalFileStore(root string) (ports.FileStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFileStore(afero.NewBasePathFs(osFs, root)), nil
}

func cleanPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", entities.NewValidationError("Invalid file path")
	}
	return cleaned, nil
}

// Save writes r to p. When p is taken a short random suffix is added before
// the extension.
func (s *FileStoreImpl) Save(ctx context.Context, p string, r io.Reader) (string, int64, error) {
	target, err := cleanPath(p)
	if err != nil {
		return "", 0, err
	}

	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", 0, fmt.Errorf("create directory: %w", err)
	}

	f, err := s.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		ext := path.Ext(target)
		target = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(target, ext), uuid.NewString()[:8], ext)
		f, err = s.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", 0, fmt.Errorf("create file: %w", err)
	}

	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = s.fs.Remove(target)
		if copyErr != nil {
			return "", 0, fmt.Errorf("write file: %w", copyErr)
		}
		return "", 0, fmt.Errorf("close file: %w", closeErr)
	}

	return target, n, nil
}

func (s *FileStoreImpl) Open(_ context.Context, p string) (io.ReadCloser, error) {
	target, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, entities.ErrFileNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Stat reports size and sniffed MIME type. A missing file yields the zero
// FileInfo.
func (s *FileStoreImpl) Stat(_ context.Context, p string) (ports.FileInfo, error) {
	target, err := cleanPath(p)
	if err != nil {
		return ports.FileInfo{}, err
	}

	info, err := s.fs.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.FileInfo{}, nil
		}
		return ports.FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	f, err := s.fs.Open(target)
	if err != nil {
		return ports.FileInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return ports.FileInfo{}, fmt.Errorf("detect content type: %w", err)
	}

	return ports.FileInfo{
		Exists:      true,
		Size:        info.Size(),
		ContentType: mt.String(),
	}, nil
}

func (s *FileStoreImpl) Delete(_ context.Context, p string) error {
	target, err := cleanPath(p)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
