// Package testutil provides a migrated SQLite database and fixtures for
// tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/config"
	"github.com/taskboard/kanban/internal/infrastructure/database"
)

// Password is the plain-text password of every fixture user.
const Password = "correct-horse-42"

// NewDB opens a fresh SQLite database in a temp dir with all migrations
// applied.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", filepath.Join(t.TempDir(), "kanban.db"))
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	src, err := database.MigrationSource(database.DialectSQLite)
	if err != nil {
		t.Fatalf("Failed to open migrations: %v", err)
	}

	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		t.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, database.DialectSQLite, driver)
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if err := database.Up(m); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

// NewFs returns an in-memory filesystem for attachment storage.
func NewFs() afero.Fs {
	return afero.NewMemMapFs()
}

// Config returns a configuration suitable for in-process servers.
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "kanban", Version: "test", Environment: "test"},
		JWT: config.JWTConfig{
			Secret:           "test-secret-with-enough-entropy-0123456789",
			ExpiresIn:        time.Hour,
			RefreshExpiresIn: 24 * time.Hour,
			Issuer:           "kanban-api",
		},
		Storage: config.StorageConfig{
			Root:          "media",
			PublicBaseURL: "http://testserver",
			MaxUploadSize: 1 << 20,
		},
		Pagination: config.PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// MustUser inserts an active user whose email is <username>@example.com.
func MustUser(t testing.TB, db *sqlx.DB, username string) *entities.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &entities.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Color:        entities.DefaultUserColor,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}

	query := db.Rebind(`
		INSERT INTO users (username, email, password_hash, color, is_active, date_joined)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := db.QueryRowx(query, user.Username, user.Email, user.PasswordHash, user.Color, user.IsActive, user.DateJoined).Scan(&user.ID); err != nil {
		t.Fatalf("Failed to insert user %s: %v", username, err)
	}
	return user
}

// MustLabel inserts a label.
func MustLabel(t testing.TB, db *sqlx.DB, name, color string) entities.Label {
	t.Helper()

	label := entities.Label{Name: name, Color: color, CreatedAt: time.Now().UTC()}
	query := db.Rebind(`INSERT INTO labels (name, color, created_at) VALUES (?, ?, ?) RETURNING id`)
	if err := db.QueryRowx(query, label.Name, label.Color, label.CreatedAt).Scan(&label.ID); err != nil {
		t.Fatalf("Failed to insert label %s: %v", name, err)
	}
	return label
}

// TaskFixture describes a task row to insert.
type TaskFixture struct {
	Title       string
	Description string
	Status      entities.TaskStatus
	AssigneeID  *int64
	DueDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LabelIDs    []int64
}

// MustTask inserts a task with its label links and returns its id. Zero
// fields get sensible defaults.
func MustTask(t testing.TB, db *sqlx.DB, f TaskFixture) int64 {
	t.Helper()

	if f.Description == "" {
		f.Description = f.Title + " description"
	}
	if f.Status == "" {
		f.Status = entities.TaskStatusTodo
	}
	if f.DueDate.IsZero() {
		f.DueDate = time.Now().UTC().AddDate(0, 0, 7)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}

	var id int64
	query := db.Rebind(`
		INSERT INTO tasks (title, description, status, assignee_id, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := db.QueryRowx(query, f.Title, f.Description, f.Status, f.AssigneeID,
		f.DueDate.Format(entities.DateLayout), f.CreatedAt, f.UpdatedAt).Scan(&id); err != nil {
		t.Fatalf("Failed to insert task %s: %v", f.Title, err)
	}

	for _, labelID := range f.LabelIDs {
		if _, err := db.Exec(db.Rebind(`INSERT INTO task_labels (task_id, label_id) VALUES (?, ?)`), id, labelID); err != nil {
			t.Fatalf("Failed to link label %d: %v", labelID, err)
		}
	}
	return id
}

// Count returns the number of rows in table matching where.
func Count(t testing.TB, db *sqlx.DB, table, where string, args ...interface{}) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := db.GetContext(context.Background(), &n, db.Rebind(query), args...); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
