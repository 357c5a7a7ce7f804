package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/taskboard/kanban/internal/adapters/repository"
	"github.com/taskboard/kanban/internal/adapters/storage"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/infrastructure/config"
	"github.com/taskboard/kanban/internal/infrastructure/database"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/infrastructure/server"
	"github.com/taskboard/kanban/internal/ports"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Kanban API server",
		Long:  "Start the Kanban API server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 = all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 = all)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, versionCmd)
	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create and manage accounts",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Run: func(cmd *cobra.Command, args []string) {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			username, _ := cmd.Flags().GetString("username")

			if email == "" || password == "" {
				log.Fatal("Email and password are required")
			}

			createUser(ports.RegisterRequest{Email: email, Password: password, Username: username})
		},
	}
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("password", "", "User password (required)")
	createUserCmd.Flags().String("username", "", "Username (defaults to the email)")

	activateCmd := &cobra.Command{
		Use:   "set-active <id> <true|false>",
		Short: "Enable or disable login for a user",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil {
				log.Fatalf("Invalid user id %q", args[0])
			}
			var active bool
			if _, err := fmt.Sscan(args[1], &active); err != nil {
				log.Fatalf("Invalid value %q, expected true or false", args[1])
			}
			setUserActive(id, active)
		},
	}

	userCmd.AddCommand(createUserCmd, activateCmd)
	return userCmd
}

// NewTokensCommand creates the refresh token maintenance command
func NewTokensCommand() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Refresh token maintenance",
	}

	tokensCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired and revoked refresh tokens",
		Run: func(cmd *cobra.Command, args []string) {
			cleanupTokens()
		},
	})

	return tokensCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Kanban API version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Kanban API %s\n", Version)
			fmt.Printf("Build Date: %s\n", BuildDate)
			fmt.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		appLogger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	files, err := storage.NewLocalFileStore(cfg.Storage.Root)
	if err != nil {
		appLogger.Fatalw("Failed to open media storage", "error", err, "root", cfg.Storage.Root)
	}

	srv, err := server.New(cfg, db, files, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Infow("Starting Kanban API server",
		"address", cfg.Server.GetAddr(),
		"environment", cfg.App.Environment,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.GetAddr())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalw("Server failed to start", "error", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Errorw("Graceful shutdown failed", "error", err)
		}
	}
}

func openMigrator() (*migrate.Migrate, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	m, err := database.NewPostgresMigrator(db.DB.DB)
	if err != nil {
		db.Close()
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	return m, db
}

func runMigration(direction string, steps int) {
	m, db := openMigrator()
	defer db.Close()

	var err error
	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Printf("Migration %s completed successfully\n", direction)
}

func showMigrationVersion() {
	m, db := openMigrator()
	defer db.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

// withUserService runs fn against a user service bound to the configured
// database and media root.
func withUserService(fn func(ctx context.Context, users *services.UserService) error) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	files, err := storage.NewLocalFileStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to open media storage: %v", err)
	}

	userService := services.NewUserService(
		repository.NewUserRepository(db.DB),
		repository.NewAuthRepository(db.DB),
		repository.NewAttachmentRepository(db.DB),
		files,
		appLogger,
	)

	if err := fn(context.Background(), userService); err != nil {
		log.Fatalf("%v", err)
	}
}

func createUser(req ports.RegisterRequest) {
	withUserService(func(ctx context.Context, users *services.UserService) error {
		user, err := users.CreateUser(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("User created successfully:\n")
		fmt.Printf("  ID: %d\n", user.ID)
		fmt.Printf("  Email: %s\n", user.Email)
		fmt.Printf("  Username: %s\n", user.Username)
		return nil
	})
}

func setUserActive(id int64, active bool) {
	withUserService(func(ctx context.Context, users *services.UserService) error {
		user, err := users.SetActive(ctx, id, active)
		if err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		fmt.Printf("User %s active: %t\n", user.Username, user.IsActive)
		return nil
	})
}

func cleanupTokens() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	authService := services.NewAuthService(
		repository.NewUserRepository(db.DB),
		repository.NewAuthRepository(db.DB),
		cfg.JWT,
		appLogger,
	)

	n, err := authService.CleanupExpiredTokens(context.Background())
	if err != nil {
		log.Fatalf("Failed to clean up tokens: %v", err)
	}
	fmt.Printf("Removed %d refresh tokens\n", n)
}
