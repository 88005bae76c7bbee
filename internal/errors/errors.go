package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes surfaced to API clients.
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeAlreadyMember     = "ALREADY_MEMBER"
	ErrCodeCannotRemoveOwner = "CANNOT_REMOVE_OWNER"
	ErrCodeStorage           = "STORAGE_ERROR"
)

// APIError is the error envelope every failing response carries.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func respond(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, err)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	respond(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Access denied"
	}
	respond(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, message))
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	respond(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	respond(c, http.StatusBadRequest, NewAPIError(ErrCodeValidation, message))
}

// Conflict sends a 409 response with the given code
func Conflict(c *gin.Context, code, message string) {
	if code == "" {
		code = ErrCodeConflict
	}
	respond(c, http.StatusConflict, NewAPIError(code, message))
}

// InternalError sends a 500 response. Storage-level detail stays out of the
// body; callers log it server-side.
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	respond(c, http.StatusInternalServerError, NewAPIError(ErrCodeStorage, message))
}
