// Package errors provides the structured error system for the gateway: error codes,
// categories that form the storage error taxonomy, and the HTTP status each maps to.
package errors

import (
	"encoding/json"
	stderr "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for gateway operations.
type ErrorCode string

const (
	// Not found
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"

	// Conflict
	ErrCodeBucketExists ErrorCode = "BUCKET_EXISTS"

	// Invalid state
	ErrCodeBucketNotEmpty ErrorCode = "BUCKET_NOT_EMPTY"

	// Request validation
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"

	// Limits
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"

	// Internal
	ErrCodeStorageWrite   ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrCodePanicRecovered ErrorCode = "PANIC_RECOVERED"
)

// ErrorCategory is the taxonomy bucket an error code belongs to.
type ErrorCategory string

const (
	CategoryNotFound     ErrorCategory = "not_found"
	CategoryConflict     ErrorCategory = "conflict"
	CategoryInvalidState ErrorCategory = "invalid_state"
	CategoryValidation   ErrorCategory = "validation"
	CategoryLimit        ErrorCategory = "limit"
	CategoryInternal     ErrorCategory = "internal"
)

// GatewayError represents a structured error with context.
type GatewayError struct {
	Code     ErrorCode         `json:"code"`
	Category ErrorCategory     `json:"category"`
	Message  string            `json:"message"`
	Context  map[string]string `json:"context,omitempty"`
	Cause    error             `json:"-"`

	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Operation string    `json:"operation,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	HTTPStatus int `json:"http_status,omitempty"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so errors.Is(err, NewError(code, "")) works.
func (e *GatewayError) Is(target error) bool {
	if gwErr, ok := target.(*GatewayError); ok {
		return e.Code == gwErr.Code
	}
	return false
}

// String returns a detailed representation for logging.
func (e *GatewayError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("RequestID=%s", e.RequestID))
	}
	if len(e.Context) > 0 {
		ctx, _ := json.Marshal(e.Context)
		parts = append(parts, fmt.Sprintf("Context=%s", ctx))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("GatewayError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new gateway error with category and HTTP status derived from the code.
func NewError(code ErrorCode, message string) *GatewayError {
	return &GatewayError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Context:    make(map[string]string),
		HTTPStatus: GetDefaultHTTPStatus(code),
	}
}

// Wrap creates a new gateway error with the given cause.
func Wrap(cause error, code ErrorCode, message string) *GatewayError {
	return NewError(code, message).WithCause(cause)
}

// GetCategory determines the taxonomy category of an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeBucketNotFound, ErrCodeObjectNotFound:
		return CategoryNotFound
	case ErrCodeBucketExists:
		return CategoryConflict
	case ErrCodeBucketNotEmpty:
		return CategoryInvalidState
	case ErrCodeValidationFailed, ErrCodeInvalidConfig:
		return CategoryValidation
	case ErrCodePayloadTooLarge, ErrCodeRateLimited:
		return CategoryLimit
	default:
		return CategoryInternal
	}
}

// GetDefaultHTTPStatus returns the HTTP status for an error code.
// Conflict and invalid state both surface as 400 to keep the public contract.
func GetDefaultHTTPStatus(code ErrorCode) int {
	statusMap := map[ErrorCode]int{
		ErrCodeBucketNotFound:   http.StatusNotFound,
		ErrCodeObjectNotFound:   http.StatusNotFound,
		ErrCodeBucketExists:     http.StatusBadRequest,
		ErrCodeBucketNotEmpty:   http.StatusBadRequest,
		ErrCodeInvalidConfig:    http.StatusBadRequest,
		ErrCodeValidationFailed: http.StatusUnprocessableEntity,
		ErrCodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
		ErrCodeRateLimited:      http.StatusTooManyRequests,
	}

	if status, ok := statusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WithContext adds contextual information to an error.
func (e *GatewayError) WithContext(key, value string) *GatewayError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *GatewayError) WithComponent(component string) *GatewayError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *GatewayError) WithOperation(operation string) *GatewayError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause.
func (e *GatewayError) WithCause(cause error) *GatewayError {
	e.Cause = cause
	return e
}

// WithRequestID sets the request the error was produced for.
func (e *GatewayError) WithRequestID(id string) *GatewayError {
	e.RequestID = id
	return e
}

// CategoryOf returns the category of err, or CategoryInternal when err is not a GatewayError.
func CategoryOf(err error) ErrorCategory {
	var gwErr *GatewayError
	if stderr.As(err, &gwErr) {
		return gwErr.Category
	}
	return CategoryInternal
}

// CodeOf returns the code of err, or ErrCodeInternalError when err is not a GatewayError.
func CodeOf(err error) ErrorCode {
	var gwErr *GatewayError
	if stderr.As(err, &gwErr) {
		return gwErr.Code
	}
	return ErrCodeInternalError
}

// IsNotFound reports whether err means a bucket or object is absent.
func IsNotFound(err error) bool {
	return err != nil && CategoryOf(err) == CategoryNotFound
}

// IsConflict reports whether err means the bucket already exists.
func IsConflict(err error) bool {
	return err != nil && CategoryOf(err) == CategoryConflict
}

// IsInvalidState reports whether err means the bucket is not empty.
func IsInvalidState(err error) bool {
	return err != nil && CategoryOf(err) == CategoryInvalidState
}
