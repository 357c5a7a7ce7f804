package services

import (
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/taskboard/kanban/internal/adapters/repository"
	"github.com/taskboard/kanban/internal/adapters/storage"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
	"github.com/taskboard/kanban/internal/testutil"
)

// testEnv wires every service against one SQLite database and an
// in-memory file store.
type testEnv struct {
	db    *sqlx.DB
	files ports.FileStore

	auth        *AuthService
	users       *UserService
	labels      *LabelService
	tasks       *TaskService
	comments    *CommentService
	attachments *AttachmentService
	dashboard   *DashboardService
	search      *SearchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	files := storage.NewFileStore(testutil.NewFs())
	log := logger.NewNop()
	cfg := testutil.Config()

	userRepo := repository.NewUserRepository(db)
	authRepo := repository.NewAuthRepository(db)
	labelRepo := repository.NewLabelRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	return &testEnv{
		db:          db,
		files:       files,
		auth:        NewAuthService(userRepo, authRepo, cfg.JWT, log),
		users:       NewUserService(userRepo, authRepo, attachmentRepo, files, log),
		labels:      NewLabelService(labelRepo, log),
		tasks:       NewTaskService(taskRepo, userRepo, labelRepo, attachmentRepo, files, log),
		comments:    NewCommentService(commentRepo, taskRepo, log),
		attachments: NewAttachmentService(attachmentRepo, taskRepo, files, log),
		dashboard:   NewDashboardService(taskRepo, repository.NewStatsRepository(db), userRepo, repository.NewActivityRepository(db), log),
		search:      NewSearchService(taskRepo, userRepo),
	}
}

func strPtr(s string) *string {
	return &s
}
