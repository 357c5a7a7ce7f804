package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/adapters/storage"
	"github.com/taskboard/kanban/internal/infrastructure/database"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/testutil"
)

type testServer struct {
	t       *testing.T
	db      *sqlx.DB
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	srv, err := New(testutil.Config(), database.Wrap(db), storage.NewFileStore(testutil.NewFs()), logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return &testServer{t: t, db: db, handler: srv.Handler()}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			s.t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		s.t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// login signs in a fixture user and returns the access token.
func (s *testServer) login(username string) string {
	s.t.Helper()

	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    username + "@example.com",
		"password": testutil.Password,
	})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("Expected login to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Token string `json:"token"`
	}
	decodeData(s.t, rec, &payload)
	return payload.Token
}

// decodeData unwraps the success envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode envelope: %v (%s)", err, rec.Body.String())
	}
	if !envelope.Success {
		t.Fatalf("Expected success envelope, got %s", rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

type taskBody struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	AssigneeName *string   `json:"assigneeName"`
	DueDate      string    `json:"dueDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Labels       []struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	} `json:"labels"`
	CommentCount    int `json:"commentCount"`
	AttachmentCount int `json:"attachmentCount"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/health/detailed"} {
		if rec := s.do(http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("Expected 200 from %s, got %d", path, rec.Code)
		}
	}

	var detailed struct {
		Checks struct {
			Database struct {
				Stats map[string]interface{} `json:"stats"`
			} `json:"database"`
		} `json:"checks"`
	}
	rec := s.do(http.MethodGet, "/health/detailed", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &detailed); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if driver := detailed.Checks.Database.Stats["driver"]; driver != "sqlite3" {
		t.Errorf("Expected sqlite3 driver, got %v", driver)
	}
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "erin@example.com",
		"password": testutil.Password,
		"username": "erin",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var auth struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeData(t, rec, &auth)
	if auth.Token == "" || auth.RefreshToken == "" {
		t.Fatal("Expected tokens in the register response")
	}

	rec = s.do(http.MethodGet, "/api/auth/me", auth.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me struct {
		Username string `json:"username"`
	}
	decodeData(t, rec, &me)
	if me.Username != "erin" {
		t.Errorf("Expected erin, got %s", me.Username)
	}

	rec = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": auth.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected refresh to succeed, got %d", rec.Code)
	}
	rec = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": auth.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected reused refresh token to get 401, got %d", rec.Code)
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")

	bodies := []interface{}{
		map[string]string{"email": "alice@example.com", "password": "wrong-password"},
		map[string]string{"email": "ghost@example.com", "password": testutil.Password},
		map[string]string{"email": "alice@example.com"},
		"{not json",
	}

	for _, body := range bodies {
		rec := s.do(http.MethodPost, "/api/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
			continue
		}
		if got := decodeError(t, rec).Error; got != "Invalid credentials" {
			t.Errorf("Expected 'Invalid credentials', got %q", got)
		}
	}
}

func TestAuthenticationRequired(t *testing.T) {
	s := newTestServer(t)
	testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Private"})

	rec := s.do(http.MethodGet, "/api/tasks/1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != "Authentication credentials were not provided." {
		t.Errorf("Unexpected error message %q", got)
	}

	for _, path := range []string{"/api/dashboard/stats", "/api/search/global?q=x", "/api/tasks/analytics"} {
		if rec := s.do(http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 from %s, got %d", path, rec.Code)
		}
	}

	if rec := s.do(http.MethodGet, "/api/tasks/1", "not-a-jwt", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", rec.Code)
	}

	if rec := s.do(http.MethodGet, "/api/tasks", "", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected anonymous task list to succeed, got %d", rec.Code)
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.MustUser(t, s.db, "alice")
	taskID := testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Orphaned"})
	token := s.login("alice")

	if rec := s.do(http.MethodDelete, "/api/users/"+itoa(alice.ID), token, nil); rec.Code >= 300 {
		t.Fatalf("Expected account deletion to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	path := "/api/tasks/" + itoa(taskID)
	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, path + "/comments", map[string]string{"content": "ghost"}},
		{http.MethodPatch, path + "/status", map[string]string{"status": "done"}},
		{http.MethodPost, "/api/tasks", map[string]string{"title": "Ghost task"}},
		{http.MethodGet, "/api/auth/me", nil},
	}
	for _, r := range requests {
		if rec := s.do(r.method, r.path, token, r.body); rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 from %s %s, got %d: %s", r.method, r.path, rec.Code, rec.Body.String())
		}
	}

	if n := testutil.Count(t, s.db, "comments", ""); n != 0 {
		t.Errorf("Expected no comments written, got %d", n)
	}
	if n := testutil.Count(t, s.db, "tasks", ""); n != 1 {
		t.Errorf("Expected no task created, got %d tasks", n)
	}
}

func TestInactiveUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	bob := testutil.MustUser(t, s.db, "bob")
	token := s.login("bob")

	if rec := s.do(http.MethodGet, "/api/auth/me", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 while active, got %d", rec.Code)
	}

	s.db.MustExec(s.db.Rebind("UPDATE users SET is_active = ? WHERE id = ?"), false, bob.ID)

	rec := s.do(http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 once inactive, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec).Error; got != "User inactive or deleted." {
		t.Errorf("Expected inactive message, got %q", got)
	}
}

func TestTaskStatusFlow(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	bug := testutil.MustLabel(t, s.db, "bug", "#EF4444")
	token := s.login("alice")

	rec := s.do(http.MethodPost, "/api/tasks", "", map[string]interface{}{
		"title":       "Fix login",
		"description": "Button does nothing",
		"due_date":    "2024-03-10",
		"labelIds":    []interface{}{bug.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created taskBody
	decodeData(t, rec, &created)
	if created.Status != "todo" || created.DueDate != "2024-03-10" {
		t.Errorf("Expected todo due 2024-03-10, got %s due %s", created.Status, created.DueDate)
	}
	if len(created.Labels) != 1 || created.Labels[0].Name != "bug" || created.Labels[0].Color != "#EF4444" {
		t.Errorf("Expected full bug label, got %+v", created.Labels)
	}
	if created.AssigneeName != nil {
		t.Errorf("Expected null assignee, got %s", *created.AssigneeName)
	}

	path := "/api/tasks/" + itoa(created.ID)
	for _, status := range []string{"inprogress", "done"} {
		rec = s.do(http.MethodPatch, path+"/status", token, map[string]string{"status": status})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 moving to %s, got %d: %s", status, rec.Code, rec.Body.String())
		}
	}

	var moved taskBody
	decodeData(t, rec, &moved)
	if moved.Status != "done" {
		t.Errorf("Expected done, got %s", moved.Status)
	}
	if !moved.UpdatedAt.After(moved.CreatedAt) {
		t.Errorf("Expected updatedAt %v after createdAt %v", moved.UpdatedAt, moved.CreatedAt)
	}
	if n := testutil.Count(t, s.db, "activity_logs", "type = 'task_moved'"); n != 2 {
		t.Errorf("Expected 2 move entries, got %d", n)
	}

	rec = s.do(http.MethodPatch, path+"/status", token, map[string]string{"status": "archived"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an invalid status, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/tasks/analytics", token, nil)
	var analytics map[string]int
	decodeData(t, rec, &analytics)
	if analytics["done"] != 1 || analytics["todo"] != 0 || analytics["inprogress"] != 0 {
		t.Errorf("Expected one done task, got %v", analytics)
	}
}

func TestTaskLabelsRoundTrip(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	token := s.login("alice")

	var labelIDs []int64
	for _, l := range []map[string]string{{"name": "Bug", "color": "#FF0000"}, {"name": "UX", "color": "#0000FF"}} {
		rec := s.do(http.MethodPost, "/api/labels", "", l)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var label struct {
			ID int64 `json:"id"`
		}
		decodeData(t, rec, &label)
		labelIDs = append(labelIDs, label.ID)
	}

	rec := s.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title": "Fix bug", "description": "...", "dueDate": "2025-01-01", "labelIds": labelIDs,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created taskBody
	decodeData(t, rec, &created)

	rec = s.do(http.MethodGet, "/api/tasks/"+itoa(created.ID), token, nil)
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	var fetched taskBody
	if err := json.Unmarshal(envelope.Data, &fetched); err != nil {
		t.Fatalf("Failed to decode task: %v", err)
	}
	if len(fetched.Labels) != 2 || fetched.Labels[0].Name != "Bug" || fetched.Labels[1].Color != "#0000FF" {
		t.Errorf("Expected Bug and UX label objects, got %+v", fetched.Labels)
	}

	rec = s.do(http.MethodPatch, "/api/tasks/"+itoa(created.ID), token, string(envelope.Data))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 applying the serialized task, got %d: %s", rec.Code, rec.Body.String())
	}
	var patched taskBody
	decodeData(t, rec, &patched)
	if patched.Title != fetched.Title || patched.Description != "..." || patched.Status != fetched.Status || patched.DueDate != "2025-01-01" {
		t.Errorf("Expected unchanged fields, got %+v", patched)
	}
	if len(patched.Labels) != 2 {
		t.Errorf("Expected labels kept, got %d", len(patched.Labels))
	}
	if n := testutil.Count(t, s.db, "activity_logs", "type = 'task_moved'"); n != 0 {
		t.Errorf("Expected no move for an unchanged status, got %d", n)
	}
}

func TestCreateTaskValidationBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/tasks", "", map[string]string{"description": "no title", "dueDate": "2024-03-10"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error == "" || body.Details["title"] == "" {
		t.Errorf("Expected an error with title details, got %+v", body)
	}

	rec = s.do(http.MethodPost, "/api/tasks", "", map[string]interface{}{
		"title": "t", "description": "d", "dueDate": "2024-03-10", "labelIds": []int{99},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for an unknown label, got %d", rec.Code)
	}
	if decodeError(t, rec).Details["labelIds"] == "" {
		t.Error("Expected labelIds details")
	}

	if rec := s.do(http.MethodPost, "/api/tasks", "", "{broken"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}

	title := strings.Repeat("Ж", 200)
	rec = s.do(http.MethodPost, "/api/tasks", "", map[string]string{"title": title, "description": "d", "dueDate": "2024-03-10"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for a 200-character title, got %d: %s", rec.Code, rec.Body.String())
	}
	var created taskBody
	decodeData(t, rec, &created)
	if created.Title != title {
		t.Errorf("Expected title stored intact, got %q", created.Title)
	}
}

func TestUpdateAssignee(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.MustUser(t, s.db, "alice")
	bob := testutil.MustUser(t, s.db, "bob")
	id := testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Handoff", AssigneeID: &alice.ID})
	token := s.login("alice")
	path := "/api/tasks/" + itoa(id) + "/assignee"

	rec := s.do(http.MethodPatch, path, token, map[string]interface{}{"assigneeId": itoa(bob.ID)})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var task taskBody
	decodeData(t, rec, &task)
	if task.AssigneeName == nil || *task.AssigneeName != "bob" {
		t.Errorf("Expected bob, got %v", task.AssigneeName)
	}

	rec = s.do(http.MethodPatch, path, token, `{"assigneeId": null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	task = taskBody{}
	decodeData(t, rec, &task)
	if task.AssigneeName != nil {
		t.Errorf("Expected assignee cleared, got %s", *task.AssigneeName)
	}

	if rec := s.do(http.MethodPatch, path, token, `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without assigneeId, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPatch, path, token, `{"assigneeId": 999}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown user, got %d", rec.Code)
	}
}

func TestPartialUpdateKeepsAssignee(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.MustUser(t, s.db, "alice")
	id := testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Keep", AssigneeID: &alice.ID})
	token := s.login("alice")

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		rec := s.do(method, "/api/tasks/"+itoa(id), token, `{"title": "Kept"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 from %s, got %d: %s", method, rec.Code, rec.Body.String())
		}
		var task taskBody
		decodeData(t, rec, &task)
		if task.Title != "Kept" || task.AssigneeName == nil {
			t.Errorf("Expected title changed and assignee kept via %s, got %+v", method, task)
		}
	}

	rec := s.do(http.MethodPatch, "/api/tasks/"+itoa(id), token, `{"assigneeId": null}`)
	var task taskBody
	decodeData(t, rec, &task)
	if task.AssigneeName != nil {
		t.Errorf("Expected explicit null to clear the assignee, got %s", *task.AssigneeName)
	}
}

func TestListTasksPagination(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 25; i++ {
		testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Task " + itoa(int64(i))})
	}

	type page struct {
		Count    int     `json:"count"`
		Next     *string `json:"next"`
		Previous *string `json:"previous"`
		Results  struct {
			Success bool       `json:"success"`
			Data    []taskBody `json:"data"`
		} `json:"results"`
	}

	rec := s.do(http.MethodGet, "/api/tasks", "", nil)
	var first page
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("Failed to decode page: %v", err)
	}
	if first.Count != 25 || len(first.Results.Data) != 20 {
		t.Errorf("Expected 20 of 25, got %d of %d", len(first.Results.Data), first.Count)
	}
	if first.Next == nil || !strings.HasSuffix(*first.Next, "/api/tasks?page=2") {
		t.Errorf("Expected next link to page 2, got %v", first.Next)
	}
	if first.Previous != nil {
		t.Errorf("Expected no previous link, got %s", *first.Previous)
	}

	rec = s.do(http.MethodGet, "/api/tasks?page=2", "", nil)
	var second page
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("Failed to decode page: %v", err)
	}
	if len(second.Results.Data) != 5 || second.Next != nil || second.Previous == nil {
		t.Errorf("Expected last page of 5 with only a previous link, got %d", len(second.Results.Data))
	}

	if rec := s.do(http.MethodGet, "/api/tasks?page=3", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 past the last page, got %d", rec.Code)
	}
	for _, q := range []string{"page=922337203685477581&page_size=20", "page=9223372036854775807", "page=0"} {
		if rec := s.do(http.MethodGet, "/api/tasks?"+q, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", q, rec.Code)
		}
	}
	if rec := s.do(http.MethodGet, "/api/tasks?status=archived", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an invalid status filter, got %d", rec.Code)
	}
}

func TestSearchPayloads(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	bug := testutil.MustLabel(t, s.db, "bug", "#EF4444")
	testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Login bug", LabelIDs: []int64{bug.ID}})
	testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Login polish"})
	token := s.login("alice")

	rec := s.do(http.MethodGet, "/api/search/tasks?q=login&status=todo&labels="+itoa(bug.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tasks struct {
		Tasks        []taskBody `json:"tasks"`
		TotalResults int        `json:"totalResults"`
		SearchQuery  string     `json:"searchQuery"`
		Filters      struct {
			Status   []string `json:"status"`
			Labels   []string `json:"labels"`
			Assignee *string  `json:"assignee"`
		} `json:"filters"`
	}
	decodeData(t, rec, &tasks)
	if tasks.TotalResults != 1 || len(tasks.Tasks) != 1 || tasks.SearchQuery != "login" {
		t.Errorf("Expected one match for login, got %d (%q)", tasks.TotalResults, tasks.SearchQuery)
	}
	if len(tasks.Filters.Status) != 1 || tasks.Filters.Status[0] != "todo" || len(tasks.Filters.Labels) != 1 || tasks.Filters.Assignee != nil {
		t.Errorf("Expected echoed filters, got %+v", tasks.Filters)
	}

	rec = s.do(http.MethodGet, "/api/search/users?q=ALI", token, nil)
	var users struct {
		Users        []map[string]interface{} `json:"users"`
		TotalResults int                      `json:"totalResults"`
	}
	decodeData(t, rec, &users)
	if users.TotalResults != 1 || len(users.Users) != 1 {
		t.Errorf("Expected alice, got %d users", users.TotalResults)
	}

	rec = s.do(http.MethodGet, "/api/search/global?q=login", token, nil)
	var global struct {
		Query            string `json:"query"`
		TotalTaskResults int    `json:"totalTaskResults"`
		TotalUserResults int    `json:"totalUserResults"`
	}
	decodeData(t, rec, &global)
	if global.Query != "login" || global.TotalTaskResults != 2 || global.TotalUserResults != 0 {
		t.Errorf("Expected 2 tasks and no users, got %+v", global)
	}
}

func TestCommentPermissions(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	testutil.MustUser(t, s.db, "bob")
	id := testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Discuss"})
	alice := s.login("alice")
	bob := s.login("bob")

	rec := s.do(http.MethodPost, "/api/tasks/"+itoa(id)+"/comments", alice, map[string]string{"content": "mine"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var comment struct {
		ID         int64  `json:"id"`
		AuthorName string `json:"authorName"`
	}
	decodeData(t, rec, &comment)

	path := "/api/comments/" + itoa(comment.ID)
	if rec := s.do(http.MethodPut, path, bob, map[string]string{"content": "hijack"}); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, path, bob, nil); rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPatch, path, alice, map[string]string{"content": "edited"}); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/tasks/"+itoa(id), alice, nil)
	var task taskBody
	decodeData(t, rec, &task)
	if task.CommentCount != 1 {
		t.Errorf("Expected commentCount 1, got %d", task.CommentCount)
	}

	if rec := s.do(http.MethodDelete, path, alice, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/tasks/999/comments", alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing task, got %d", rec.Code)
	}
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	id := testutil.MustTask(t, s.db, testutil.TaskFixture{Title: "Files"})
	token := s.login("alice")

	rec := s.upload("/api/tasks/"+itoa(id)+"/attachments", token, "notes.txt", []byte("meeting notes"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var attachment struct {
		ID           int64  `json:"id"`
		OriginalName string `json:"originalName"`
		URL          string `json:"url"`
		Size         int64  `json:"size"`
		Type         string `json:"type"`
	}
	decodeData(t, rec, &attachment)
	if attachment.OriginalName != "notes.txt" || attachment.Size != int64(len("meeting notes")) {
		t.Errorf("Expected notes.txt of %d bytes, got %+v", len("meeting notes"), attachment)
	}
	if !strings.HasPrefix(attachment.Type, "text/plain") {
		t.Errorf("Expected text/plain, got %s", attachment.Type)
	}
	wantURL := "http://testserver/api/attachments/" + itoa(attachment.ID) + "/download"
	if attachment.URL != wantURL {
		t.Errorf("Expected %s, got %s", wantURL, attachment.URL)
	}

	rec = s.do(http.MethodGet, "/api/attachments/"+itoa(attachment.ID)+"/download", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "meeting notes" {
		t.Errorf("Expected file bytes, got %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename=notes.txt`) && !strings.Contains(cd, `filename="notes.txt"`) {
		t.Errorf("Expected original file name in Content-Disposition, got %q", cd)
	}

	if rec := s.do(http.MethodPost, "/api/tasks/"+itoa(id)+"/attachments", token, "{}"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a file, got %d", rec.Code)
	}

	rec = s.upload("/api/tasks/"+itoa(id)+"/attachments", token, "huge.bin", bytes.Repeat([]byte("x"), 1<<20+1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for an oversized file, got %d", rec.Code)
	}
	if decodeError(t, rec).Details["file"] == "" {
		t.Error("Expected file details for an oversized upload")
	}

	if rec := s.do(http.MethodDelete, "/api/attachments/"+itoa(attachment.ID), token, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	token := s.login("alice")

	rec := s.do(http.MethodPost, "/api/tasks", token, map[string]string{"title": "a", "description": "b", "dueDate": "2000-01-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/dashboard/stats", token, nil)
	var stats map[string]int
	decodeData(t, rec, &stats)
	if stats["totalTasks"] != 1 || stats["overdueTasks"] != 1 || stats["tasksThisWeek"] != 1 || stats["totalUsers"] != 1 {
		t.Errorf("Unexpected stats %v", stats)
	}

	rec = s.do(http.MethodGet, "/api/dashboard/activity?limit=5", token, nil)
	var activity []struct {
		Type     string `json:"type"`
		UserName string `json:"userName"`
	}
	decodeData(t, rec, &activity)
	if len(activity) != 1 || activity[0].Type != "task_created" || activity[0].UserName != "alice" {
		t.Errorf("Expected one task_created entry by alice, got %+v", activity)
	}

	if rec := s.do(http.MethodGet, "/api/dashboard/activity?limit=lots", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	s := newTestServer(t)
	testutil.MustUser(t, s.db, "alice")
	token := s.login("alice")

	for _, path := range []string{"/api/tasks/abc", "/api/tasks/0", "/api/tasks/404"} {
		if rec := s.do(http.MethodGet, path, token, nil); rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 from %s, got %d", path, rec.Code)
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
