package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/taskboard/kanban/internal/domain/entities"
)

func TestSaveAndOpen(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(afero.NewMemMapFs())

	saved, n, err := store.Save(ctx, "attachments/task_1/notes.txt", strings.NewReader("hello board"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if saved != "attachments/task_1/notes.txt" {
		t.Errorf("Expected requested path, got %s", saved)
	}
	if n != int64(len("hello board")) {
		t.Errorf("Expected %d bytes written, got %d", len("hello board"), n)
	}

	rc, err := store.Open(ctx, saved)
	if err != nil {
		t.Fatalf("Expected no error opening file, got %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "hello board" {
		t.Errorf("Expected 'hello board', got %q", data)
	}
}

func TestSaveCollisionAddsSuffix(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(afero.NewMemMapFs())

	first, _, err := store.Save(ctx, "attachments/task_1/report.pdf", strings.NewReader("%PDF-1.4 one"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, _, err := store.Save(ctx, "attachments/task_1/report.pdf", strings.NewReader("%PDF-1.4 two"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if first == second {
		t.Fatalf("Expected distinct paths, got %s twice", first)
	}
	if !strings.HasPrefix(second, "attachments/task_1/report_") || !strings.HasSuffix(second, ".pdf") {
		t.Errorf("Expected suffixed name keeping the extension, got %s", second)
	}
}

func TestSaveRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs)

	saved, _, err := store.Save(ctx, "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if saved != "etc/passwd" {
		t.Errorf("Expected path confined to the store, got %s", saved)
	}
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(afero.NewMemMapFs())

	info, err := store.Stat(ctx, "attachments/missing.txt")
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if info.Exists || info.Size != 0 || info.ContentType != "" {
		t.Errorf("Expected zero FileInfo, got %+v", info)
	}

	saved, _, _ := store.Save(ctx, "attachments/doc.pdf", strings.NewReader("%PDF-1.4\n%fake"))
	info, err = store.Stat(ctx, saved)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !info.Exists || info.ContentType != "application/pdf" {
		t.Errorf("Expected existing application/pdf, got %+v", info)
	}
}

func TestOpenMissing(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs())

	_, err := store.Open(context.Background(), "nope.txt")
	if !errors.Is(err, entities.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs())

	if err := store.Delete(context.Background(), "attachments/gone.txt"); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
