package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/config"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

const minPasswordLength = 8

var fieldValidator = validator.New()

// Claims represents the JWT claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService handles authentication operations
type AuthService struct {
	userRepo  ports.UserRepository
	authRepo  ports.AuthRepository
	jwtConfig config.JWTConfig
	logger    *logger.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo ports.UserRepository, authRepo ports.AuthRepository, jwtConfig config.JWTConfig, logger *logger.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		authRepo:  authRepo,
		jwtConfig: jwtConfig,
		logger:    logger.WithComponent("auth"),
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user account and signs it in. The username
// defaults to the email when left blank.
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResult, error) {
	user, err := createAccount(ctx, s.userRepo, req)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User registered successfully", "user_id", user.ID, "email", user.Email)

	return s.issueTokens(ctx, user)
}

// Login authenticates a user by email and password. Unknown email, wrong
// password and inactive account all fail with the same error.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResult, error) {
	email := NormalizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, entities.ErrNotFound) {
			return nil, fmt.Errorf("failed to load user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(req.Password))
		s.logger.LogSecurityEvent("login_unknown_email", 0, map[string]interface{}{"email": email})
		return nil, entities.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.LogSecurityEvent("login_bad_password", user.ID, nil)
		return nil, entities.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.logger.LogSecurityEvent("login_inactive_account", user.ID, nil)
		return nil, entities.ErrInvalidCredentials
	}

	s.logger.Infow("User logged in successfully", "user_id", user.ID)

	return s.issueTokens(ctx, user)
}

// Refresh exchanges a refresh token for a new token pair. The presented
// token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	invalid := entities.NewAuthenticationError("Invalid or expired refresh token")
	if refreshToken == "" {
		return nil, invalid
	}

	tokenHash := hashToken(refreshToken)
	storedToken, err := s.authRepo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	if !storedToken.IsValid() {
		return nil, invalid
	}

	user, err := s.userRepo.GetByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !user.IsActive {
		return nil, invalid
	}

	if err := s.authRepo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			s.logger.LogSecurityEvent("refresh_token_reused", user.ID, nil)
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes the caller's refresh token. A token that is unknown,
// expired, already revoked or owned by someone else is rejected.
func (s *AuthService) Logout(ctx context.Context, callerID int64, refreshToken string) error {
	if refreshToken == "" {
		return entities.ErrInvalidToken
	}

	tokenHash := hashToken(refreshToken)
	storedToken, err := s.authRepo.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return entities.ErrInvalidToken
		}
		return fmt.Errorf("failed to load refresh token: %w", err)
	}

	if !storedToken.IsValid() || storedToken.UserID != callerID {
		s.logger.LogSecurityEvent("logout_invalid_token", callerID, nil)
		return entities.ErrInvalidToken
	}

	if err := s.authRepo.RevokeRefreshToken(ctx, tokenHash); err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return entities.ErrInvalidToken
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.logger.Infow("User logged out successfully", "user_id", callerID)
	return nil
}

// CleanupExpiredTokens removes refresh tokens past their expiry.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.authRepo.CleanupExpiredTokens(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("Cleaned up expired refresh tokens", "count", n)
	return n, nil
}

// ValidateToken validates a JWT token and returns claims
func (s *AuthService) ValidateToken(tokenString string) (*ports.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithIssuer(s.jwtConfig.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, entities.NewAuthenticationError("Invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, entities.NewAuthenticationError("Invalid or expired token")
	}

	return &ports.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// Authenticate resolves a bearer token to its user. Tokens of users that
// were deleted or deactivated after issue are rejected.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*entities.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			return nil, entities.NewAuthenticationError("User not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, entities.NewAuthenticationError("User inactive or deleted.")
	}

	return user, nil
}

// ValidatePassword applies the password policy.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		msg := fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength)
		return entities.NewFieldValidationError(msg, map[string]string{"password": msg})
	}

	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		msg := "This password is entirely numeric."
		return entities.NewFieldValidationError(msg, map[string]string{"password": msg})
	}

	return nil
}

// checkUserAvailable rejects an email or username held by a user other
// than selfID.
func checkUserAvailable(ctx context.Context, users ports.UserRepository, email, username string, selfID int64) error {
	if email != "" {
		existing, err := users.GetByEmail(ctx, email)
		if err != nil && !errors.Is(err, entities.ErrNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			msg := "A user with that email already exists."
			return entities.NewFieldValidationError(msg, map[string]string{"email": msg})
		}
	}

	if username != "" {
		existing, err := users.GetByUsername(ctx, username)
		if err != nil && !errors.Is(err, entities.ErrNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if existing != nil && existing.ID != selfID {
			msg := "A user with that username already exists."
			return entities.NewFieldValidationError(msg, map[string]string{"username": msg})
		}
	}

	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *entities.User) (*ports.AuthResult, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &ports.AuthResult{
		User:         user,
		Token:        accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *AuthService) generateAccessToken(user *entities.User) (string, error) {
	issuedAt := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (s *AuthService) generateRefreshToken(ctx context.Context, userID int64) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	token := hex.EncodeToString(tokenBytes)

	expiresAt := time.Now().UTC().Add(s.jwtConfig.RefreshExpiresIn)
	if err := s.authRepo.CreateRefreshToken(ctx, userID, hashToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return token, nil
}

// dummyPasswordHash is compared against when the email is unknown so the
// response takes as long as a real password check.
func (s *AuthService) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	})
	return s.dummyHash
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
