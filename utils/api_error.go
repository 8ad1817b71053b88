package utils

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// APIError is returned by handlers and rendered by the central error
// handler as the error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func NewAPIError(status int, message string, errs ...string) *APIError {
	if errs == nil {
		errs = []string{}
	}
	return &APIError{StatusCode: status, Message: message, Errors: errs}
}

func BadRequest(message string, errs ...string) *APIError {
	return NewAPIError(fiber.StatusBadRequest, message, errs...)
}

func Unauthorized(message string) *APIError {
	return NewAPIError(fiber.StatusUnauthorized, message)
}

func Forbidden(message string) *APIError {
	return NewAPIError(fiber.StatusForbidden, message)
}

func NotFound(message string) *APIError {
	return NewAPIError(fiber.StatusNotFound, message)
}

func Conflict(message string) *APIError {
	return NewAPIError(fiber.StatusConflict, message)
}

// InvalidState reports a business-rule violation such as a full event.
func InvalidState(message string) *APIError {
	return NewAPIError(fiber.StatusBadRequest, message)
}

func Internal(message string) *APIError {
	return NewAPIError(fiber.StatusInternalServerError, message)
}
