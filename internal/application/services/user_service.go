package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// UserService handles user-related operations
type UserService struct {
	userRepo       ports.UserRepository
	authRepo       ports.AuthRepository
	attachmentRepo ports.AttachmentRepository
	files          ports.FileStore
	logger         *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo ports.UserRepository, authRepo ports.AuthRepository, attachmentRepo ports.AttachmentRepository, files ports.FileStore, logger *logger.Logger) *UserService {
	return &UserService{
		userRepo:       userRepo,
		authRepo:       authRepo,
		attachmentRepo: attachmentRepo,
		files:          files,
		logger:         logger.WithComponent("users"),
	}
}

// CreateUser creates an account without signing it in.
func (s *UserService) CreateUser(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	user, err := createAccount(ctx, s.userRepo, req)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User created successfully", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ListUsers returns users whose username or email contains search.
func (s *UserService) ListUsers(ctx context.Context, search string) ([]*entities.User, error) {
	return s.userRepo.List(ctx, ports.UserFilter{Search: strings.TrimSpace(search)})
}

// UpdateUser updates the caller's own profile. Changing the email signs the
// user out of every session.
func (s *UserService) UpdateUser(ctx context.Context, callerID, id int64, req ports.UpdateUserRequest) (*entities.User, error) {
	if callerID != id {
		return nil, entities.NewPermissionError("You can only update your own profile")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var email, username string
	if req.Email != nil {
		email = NormalizeEmail(*req.Email)
		if err := fieldValidator.Var(email, "required,email,max=254"); err != nil {
			return nil, entities.NewFieldValidationError("Enter a valid email address.", map[string]string{"email": "Enter a valid email address."})
		}
	}
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, entities.NewFieldValidationError("Username may not be blank.", map[string]string{"username": "This field may not be blank."})
		}
		if err := maxLength("username", username, maxUsernameLength); err != nil {
			return nil, err
		}
	}

	if err := checkUserAvailable(ctx, s.userRepo, email, username, user.ID); err != nil {
		return nil, err
	}

	emailChanged := email != "" && email != user.Email
	if email != "" {
		user.Email = email
	}
	if username != "" {
		user.Username = username
	}
	if req.Color != nil {
		user.Color = *req.Color
	}
	if req.Avatar != nil {
		if *req.Avatar == "" {
			user.Avatar = nil
		} else {
			avatar := *req.Avatar
			user.Avatar = &avatar
		}
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if emailChanged {
		if err := s.revokeSessions(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	s.logger.LogUserAction(callerID, "user_updated", map[string]interface{}{"email_changed": emailChanged})
	return user, nil
}

// DeleteUser removes the caller's own account. Tasks assigned to the user
// become unassigned; comments, attachments and activity are removed.
func (s *UserService) DeleteUser(ctx context.Context, callerID, id int64) error {
	if callerID != id {
		return entities.NewPermissionError("You can only delete your own account")
	}

	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return err
	}

	paths, err := s.attachmentRepo.FilePathsByUploader(ctx, id)
	if err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	removeFiles(ctx, s.files, s.logger, paths)

	s.logger.LogUserAction(callerID, "user_deleted", map[string]interface{}{"attachments_removed": len(paths)})
	return nil
}

// SetActive enables or disables login for a user. Disabling revokes every
// refresh token the user holds.
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = active
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if !active {
		if err := s.revokeSessions(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID int64) error {
	if err := s.authRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.logger.LogSecurityEvent("sessions_revoked", userID, nil)
	return nil
}

// createAccount validates req and inserts an active user.
func createAccount(ctx context.Context, users ports.UserRepository, req ports.RegisterRequest) (*entities.User, error) {
	email := NormalizeEmail(req.Email)
	if err := fieldValidator.Var(email, "required,email,max=254"); err != nil {
		return nil, entities.NewFieldValidationError("Enter a valid email address.", map[string]string{"email": "Enter a valid email address."})
	}

	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = email
	}
	if err := maxLength("username", username, maxUsernameLength); err != nil {
		return nil, err
	}

	if err := checkUserAvailable(ctx, users, email, username, 0); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Color:        entities.DefaultUserColor,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}

	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// removeFiles deletes stored files whose records are already gone. Failures
// are logged.
func removeFiles(ctx context.Context, files ports.FileStore, log *logger.Logger, paths []string) {
	for _, p := range paths {
		if err := files.Delete(ctx, p); err != nil {
			log.WithError(err).Warnw("Failed to remove stored file", "path", p)
		}
	}
}
