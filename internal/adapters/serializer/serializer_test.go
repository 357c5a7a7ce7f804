package serializer

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/ports"
)

func TestSerializeTaskWireShape(t *testing.T) {
	name := "alice"
	id := int64(3)
	task := &entities.TaskDetails{
		Task: entities.Task{
			ID:          1,
			Title:       "Fix login",
			Description: "Button does nothing",
			Status:      entities.TaskStatusInProgress,
			AssigneeID:  &id,
			DueDate:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			CreatedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		AssigneeName: &name,
		CommentCount: 2,
		Labels:       []entities.Label{{ID: 4, Name: "bug", Color: "#EF4444"}},
	}

	data, err := json.Marshal(SerializeTask(task))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got["dueDate"] != "2024-03-10" {
		t.Errorf("Expected dueDate 2024-03-10, got %v", got["dueDate"])
	}
	if got["assigneeName"] != "alice" {
		t.Errorf("Expected assigneeName alice, got %v", got["assigneeName"])
	}
	if got["commentCount"] != float64(2) || got["attachmentCount"] != float64(0) {
		t.Errorf("Expected counts 2/0, got %v/%v", got["commentCount"], got["attachmentCount"])
	}
	labels, ok := got["labels"].([]interface{})
	if !ok || len(labels) != 1 {
		t.Fatalf("Expected one label object, got %v", got["labels"])
	}
	if label := labels[0].(map[string]interface{}); label["name"] != "bug" {
		t.Errorf("Expected full label object, got %v", label)
	}
	for _, key := range []string{"assignee_id", "assigneeId", "due_date"} {
		if _, present := got[key]; present {
			t.Errorf("Expected %s to be absent from the wire shape", key)
		}
	}
}

func TestSerializeTaskUnassigned(t *testing.T) {
	task := &entities.TaskDetails{Task: entities.Task{ID: 1, Title: "t"}}

	data, _ := json.Marshal(SerializeTask(task))
	if !strings.Contains(string(data), `"assigneeName":null`) {
		t.Errorf("Expected null assigneeName, got %s", data)
	}
	if !strings.Contains(string(data), `"labels":[]`) {
		t.Errorf("Expected empty labels array, got %s", data)
	}
}

func TestSerializeAttachmentMissingFile(t *testing.T) {
	result := ports.AttachmentResult{
		Attachment: &entities.AttachmentDetails{Attachment: entities.Attachment{
			ID: 9, TaskID: 1, FilePath: "attachments/task_1/notes_ab12.txt", OriginalName: "notes.txt",
		}},
		File: ports.FileInfo{Exists: false, Size: 99, ContentType: "text/plain"},
	}

	got := SerializeAttachment(result, "http://localhost:8000/")
	if got.Size != 0 || got.Type != "" {
		t.Errorf("Expected zero size and empty type, got %d/%q", got.Size, got.Type)
	}
	if got.Name != "notes_ab12.txt" || got.OriginalName != "notes.txt" {
		t.Errorf("Expected stored and original names, got %s/%s", got.Name, got.OriginalName)
	}
	if got.URL != "http://localhost:8000/api/attachments/9/download" {
		t.Errorf("Expected download URL, got %s", got.URL)
	}
}

func TestSerializeActivityDeletedTask(t *testing.T) {
	title := "stale"
	entry := &entities.ActivityDetails{
		ActivityLog: entities.ActivityLog{ID: 1, Type: entities.ActivityTaskDeleted},
		TaskTitle:   &title,
	}

	if got := SerializeActivity(entry); got.TaskID != nil || got.TaskTitle != nil {
		t.Errorf("Expected null task fields, got %v/%v", got.TaskID, got.TaskTitle)
	}
}

func TestNewTaskPageLinks(t *testing.T) {
	self, _ := url.Parse("http://testserver/api/tasks?status=todo&page=2")

	page := NewTaskPage([]Task{}, 45, 2, 20, self)
	if page.Count != 45 {
		t.Errorf("Expected count 45, got %d", page.Count)
	}
	if page.Next == nil || *page.Next != "http://testserver/api/tasks?page=3&status=todo" {
		t.Errorf("Expected next page 3, got %v", page.Next)
	}
	if page.Previous == nil || *page.Previous != "http://testserver/api/tasks?status=todo" {
		t.Errorf("Expected previous without page param, got %v", page.Previous)
	}

	last := NewTaskPage([]Task{}, 45, 3, 20, self)
	if last.Next != nil {
		t.Errorf("Expected no next on the last page, got %s", *last.Next)
	}

	first := NewTaskPage([]Task{}, 5, 1, 20, self)
	if first.Next != nil || first.Previous != nil {
		t.Error("Expected no links on a single page")
	}
	if !first.Results.Success {
		t.Error("Expected results envelope to be successful")
	}
}
