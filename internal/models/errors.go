package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes used across the API and the publish pipeline.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeStagingUnavailable = "STAGING_UNAVAILABLE"
	CodeUploadFailed       = "UPLOAD_FAILED"
	CodePostCreationFailed = "POST_CREATION_FAILED"
	// CodeCleanupFailed is log-only: a failed compensating blob delete is
	// recorded but never surfaced to the caller.
	CodeCleanupFailed = "CLEANUP_FAILED"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
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

// CodeOf returns the AppError code carried by err, or empty string.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// NewInvalidInputError rejects a publish request before any side effect.
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewStagingUnavailableError reports a failed upload slot reservation.
func NewStagingUnavailableError(err error) *AppError {
	return &AppError{
		Code:    CodeStagingUnavailable,
		Message: "Image staging is unavailable",
		Err:     err,
	}
}

// NewUploadFailedError reports a failed byte transfer to the staging area.
func NewUploadFailedError(err error) *AppError {
	return &AppError{
		Code:    CodeUploadFailed,
		Message: "Image upload failed",
		Err:     err,
	}
}

// NewPostCreationFailedError reports a failed post write after a
// successful upload.
func NewPostCreationFailedError(err error) *AppError {
	return &AppError{
		Code:    CodePostCreationFailed,
		Message: "Post creation failed",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
