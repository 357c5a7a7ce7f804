package entities

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against these sentinels.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrPermission     = errors.New("permission denied")
	ErrNotFound       = errors.New("not found")
)

// Error is a domain error carrying a client-safe message.
type Error struct {
	Kind    error
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewValidationError returns a ValidationError with the given message.
func NewValidationError(message string) *Error {
	return &Error{Kind: ErrValidation, Message: message}
}

// NewFieldValidationError returns a ValidationError with per-field details.
func NewFieldValidationError(message string, details map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Details: details}
}

// NewAuthenticationError returns an AuthenticationError.
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: ErrAuthentication, Message: message}
}

// NewPermissionError returns a PermissionError.
func NewPermissionError(message string) *Error {
	return &Error{Kind: ErrPermission, Message: message}
}

// NewNotFoundError returns a NotFoundError.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Common errors
var (
	ErrUserNotFound       = NewNotFoundError("User not found")
	ErrTaskNotFound       = NewNotFoundError("Task not found")
	ErrLabelNotFound      = NewNotFoundError("Label not found")
	ErrCommentNotFound    = NewNotFoundError("Comment not found")
	ErrAttachmentNotFound = NewNotFoundError("Attachment not found")
	ErrFileNotFound       = NewNotFoundError("File not found")
	ErrInvalidCredentials = NewAuthenticationError("Invalid credentials")
	ErrInvalidToken       = NewValidationError("Invalid token")
	ErrInvalidStatus      = NewValidationError("Invalid status")
	ErrFileRequired       = NewValidationError("File is required.")
)
