package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the structured error body returned by the read-only query
// surface.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// ToAPIError maps a pipeline error onto the HTTP error surface.
func ToAPIError(err error) *APIError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrTypeNotFound:
			return &APIError{
				StatusCode: http.StatusNotFound,
				ErrorCode:  "NOT_FOUND",
				Message:    appErr.Message,
			}
		case ErrTypeConfig:
			return &APIError{
				StatusCode: http.StatusBadRequest,
				ErrorCode:  string(appErr.Type),
				Message:    appErr.Message,
			}
		default:
			return &APIError{
				StatusCode: http.StatusInternalServerError,
				ErrorCode:  string(appErr.Type),
				Message:    appErr.Message,
			}
		}
	}
	return ErrInternalServer
}
