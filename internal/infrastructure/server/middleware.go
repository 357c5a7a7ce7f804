package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	httpHandlers "github.com/taskboard/kanban/internal/adapters/http"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/domain/entities"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
)

// authMiddleware requires a valid bearer token.
func (s *Server) authMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present, err := bearerToken(c)
			if err != nil {
				return err
			}
			if !present {
				return entities.NewAuthenticationError("Authentication credentials were not provided.")
			}

			if err := s.authenticate(c, authService, token); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// optionalAuthMiddleware resolves the caller when a token is sent and lets
// anonymous requests through.
func (s *Server) optionalAuthMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present, err := bearerToken(c)
			if err != nil {
				return err
			}
			if present {
				if err := s.authenticate(c, authService, token); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

func (s *Server) authenticate(c echo.Context, authService *services.AuthService, token string) error {
	user, err := authService.Authenticate(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, entities.ErrAuthentication) {
			s.logger.LogSecurityEvent("invalid_token", 0, map[string]interface{}{
				"ip":    c.RealIP(),
				"path":  c.Request().URL.Path,
				"error": err.Error(),
			})
		}
		return err
	}

	c.Set(httpHandlers.UserIDKey, user.ID)
	return nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c echo.Context) (string, bool, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false, nil
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, entities.NewAuthenticationError("Invalid authorization header format")
	}
	return parts[1], true, nil
}

// CustomValidator wraps the validator and reports failures per JSON field.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a validator that names fields by their json tag.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return validationError(verrs)
}

func validationError(verrs validator.ValidationErrors) *entities.Error {
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fieldMessage(fe)
	}

	fields := make([]string, 0, len(details))
	for f := range details {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msg := "Validation failed"
	if len(fields) > 0 {
		msg = fmt.Sprintf("%s: %s", fields[0], details[fields[0]])
	}
	return entities.NewFieldValidationError(msg, details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "hexcolor", "len":
		return "Enter a valid hex color, e.g. #3b82f6."
	case "datetime":
		return "Date has wrong format. Use YYYY-MM-DD."
	case "oneof":
		return fmt.Sprintf("%q is not a valid choice.", fmt.Sprint(fe.Value()))
	case "url":
		return "Enter a valid URL."
	default:
		return "Invalid value."
	}
}

// JSONSerializer encodes and decodes bodies with goccy/go-json.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &typeErr):
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid value for field %s", typeErr.Field)).SetInternal(err)
	case errors.As(err, &syntaxErr):
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed JSON").SetInternal(err)
	}
	return err
}

// customErrorHandler renders every error as {"error": ..., "details": ...}.
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code, body := errorResponse(err)

		if code >= http.StatusInternalServerError {
			logger.WithError(err).Errorw("Internal server error", "path", c.Request().URL.Path, "method", c.Request().Method)
		}

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			logger.WithError(err).Error("Error sending response")
		}
	}
}

func errorResponse(err error) (int, httpHandlers.ErrorResponse) {
	var domainErr *entities.Error
	if errors.As(err, &domainErr) {
		return statusForKind(domainErr.Kind), httpHandlers.ErrorResponse{
			Error:   domainErr.Message,
			Details: domainErr.Details,
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		e := validationError(verrs)
		return http.StatusBadRequest, httpHandlers.ErrorResponse{Error: e.Message, Details: e.Details}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && he.Code < http.StatusInternalServerError {
			msg = m
		}
		return he.Code, httpHandlers.ErrorResponse{Error: msg}
	}

	return http.StatusInternalServerError, httpHandlers.ErrorResponse{Error: "Internal server error"}
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, entities.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, entities.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(kind, entities.ErrPermission):
		return http.StatusForbidden
	case errors.Is(kind, entities.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
