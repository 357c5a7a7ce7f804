package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/taskboard/kanban/internal/adapters/serializer"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// UserIDKey is the echo context key holding the authenticated user id.
const UserIDKey = "user"

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, userService *services.UserService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		logger:      logger,
	}
}

// Register godoc
// @Summary Register a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RegisterRequest true "Registration data"
// @Success 201 {object} serializer.AuthPayload
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return created(c, serializer.SerializeAuth(result))
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Credentials"
// @Success 200 {object} serializer.AuthPayload
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return entities.ErrInvalidCredentials
	}
	if err := c.Validate(&req); err != nil {
		return entities.ErrInvalidCredentials
	}

	result, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeAuth(result))
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req ports.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return invalidRequest(err)
	}

	result, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeAuth(result))
}

// Logout revokes the refresh token in the body.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req ports.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return entities.ErrInvalidToken
	}

	if err := h.authService.Logout(c.Request().Context(), callerID(c), req.RefreshToken); err != nil {
		return err
	}

	return message(c, "Logged out")
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.userService.GetUser(c.Request().Context(), callerID(c))
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeUser(user))
}

// UserHandler handles user-related requests
type UserHandler struct {
	userService *services.UserService
	logger      *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, logger *logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Username or email substring"
// @Success 200 {array} serializer.User
// @Router /users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userService.ListUsers(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeUsers(users))
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	user, err := h.userService.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeUser(user))
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req ports.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userService.UpdateUser(c.Request().Context(), callerID(c), id, req)
	if err != nil {
		return err
	}

	return ok(c, serializer.SerializeUser(user))
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.userService.DeleteUser(c.Request().Context(), callerID(c), id); err != nil {
		return err
	}

	return message(c, "User deleted")
}

// Utility functions and helper types

// callerID returns the authenticated user id, or 0 for anonymous requests.
func callerID(c echo.Context) int64 {
	id, _ := c.Get(UserIDKey).(int64)
	return id
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, entities.NewNotFoundError("Not found.")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return invalidRequest(err)
	}
	return c.Validate(req)
}

// bindJSONWithKeys decodes the body into req and also returns the raw
// top-level members so callers can tell an absent key from a null one.
func bindJSONWithKeys(c echo.Context, req interface{}) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, invalidRequest(err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	if err := json.Unmarshal(body, req); err != nil {
		return nil, invalidRequest(err)
	}

	keys := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, invalidRequest(err)
	}
	return keys, nil
}

// optionalID reads key from raw members.
func optionalID(keys map[string]json.RawMessage, key string) (ports.OptionalID, error) {
	var out ports.OptionalID
	raw, present := keys[key]
	if !present {
		return out, nil
	}
	if err := out.UnmarshalJSON(raw); err != nil {
		return out, invalidRequest(err)
	}
	return out, nil
}

func invalidRequest(err error) error {
	var domainErr *entities.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return entities.NewValidationError("Invalid request format")
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, serializer.Envelope{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, serializer.Envelope{Success: true, Data: data})
}

func message(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msg})
}

// parseIDList parses a comma-separated list of ids. Blank entries are
// skipped.
func parseIDList(raw, field string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			msg := "Enter a comma-separated list of numeric ids."
			return nil, entities.NewFieldValidationError(msg, map[string]string{field: msg})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Request/Response types
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
