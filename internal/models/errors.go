package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeStorageFailure    = "STORAGE_FAILURE"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Messages holds every validation failure, in the order they were found.
	Messages []string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewValidationError builds a validation error holding one or more messages.
func NewValidationError(messages ...string) *AppError {
	msg := "Validation failed"
	if len(messages) > 0 {
		msg = messages[0]
	}
	return &AppError{
		Code:     CodeValidation,
		Message:  msg,
		Messages: messages,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInvalidIdentifierError() *AppError {
	return &AppError{
		Code:    CodeInvalidIdentifier,
		Message: "Invalid identifier",
	}
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewStorageFailure hides the storage error behind a retry message; the cause
// stays reachable through Unwrap for logging.
func NewStorageFailure(err error) *AppError {
	return &AppError{
		Code:    CodeStorageFailure,
		Message: "Please try again later.",
		Err:     err,
	}
}

// StatusFor maps an error to the HTTP status handlers respond with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation, CodeInvalidInput:
		return fiber.StatusBadRequest
	case CodeInvalidIdentifier, CodeNotFound:
		return fiber.StatusNotFound
	case CodeUnauthorized:
		return fiber.StatusForbidden
	case CodeStorageFailure:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response. Wrapped causes
// are never written to the client.
func RespondWithError(c *fiber.Ctx, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:    appErr.Message,
			Code:     appErr.Code,
			Messages: appErr.Messages,
		}
	} else {
		response = ErrorResponse{Error: "Internal server error"}
	}

	return c.Status(StatusFor(err)).JSON(response)
}
