package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies pipeline errors by origin.
type ErrorType string

const (
	ErrTypeConfig    ErrorType = "CONFIG"
	ErrTypeSchema    ErrorType = "SCHEMA"
	ErrTypeCoercion  ErrorType = "COERCION"
	ErrTypeIntegrity ErrorType = "INTEGRITY"
	ErrTypeStorage   ErrorType = "STORAGE"
	ErrTypePublish   ErrorType = "PUBLISH"
	ErrTypeNotFound  ErrorType = "NOT_FOUND"
)

// AppError is a typed pipeline error. Every error surfaced to an operator is
// attributed to a source, a row range, or a derivation step through Context.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value attribution to the error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new typed application error.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewConfigError creates a configuration error. Configuration errors are
// fatal before any I/O happens.
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewSchemaError creates a schema-violation error for one source. Fatal for
// that source; other sources keep loading.
func NewSchemaError(source, message string) *AppError {
	return NewAppError(ErrTypeSchema, message, nil).WithContext("source", source)
}

// NewCoercionError creates a row-level coercion error. Recoverable: the row
// is skipped and counted, the load continues.
func NewCoercionError(source, column string, cause error) *AppError {
	return NewAppError(ErrTypeCoercion, "value could not be coerced", cause).
		WithContext("source", source).
		WithContext("column", column)
}

// NewStorageError creates a store-related error.
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewPublishError creates a publish-stage error. The previously published
// summary remains authoritative when one of these is raised.
func NewPublishError(message string, cause error) *AppError {
	return NewAppError(ErrTypePublish, message, cause)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}
