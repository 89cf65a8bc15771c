package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeTimeout      ErrorType = "timeout"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrRequestNotFound = NewDomainError(ErrorTypeNotFound, "chat request not found", nil)

	// Validation Errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuery        = NewDomainError(ErrorTypeValidation, "query cannot be empty", nil)
	ErrEmptyCode         = NewDomainError(ErrorTypeValidation, "code cannot be empty", nil)
	ErrInvalidMode       = NewDomainError(ErrorTypeValidation, "mode must be code or explain", nil)
	ErrInvalidK          = NewDomainError(ErrorTypeValidation, "k must be between 1 and 20", nil)
	ErrInvalidLanguage   = NewDomainError(ErrorTypeValidation, "language must be es or en", nil)
	ErrInjectionDetected = NewDomainError(ErrorTypeValidation, "prompt injection detected", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Permission Errors
	ErrForbidden               = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)

	// External Collaborator Errors
	ErrEmbeddingFailed     = NewDomainError(ErrorTypeExternal, "embedding provider error", nil)
	ErrSearchFailed        = NewDomainError(ErrorTypeExternal, "vector search failed", nil)
	ErrProviderUnavailable = NewDomainError(ErrorTypeExternal, "LLM provider unavailable", nil)
	ErrProviderError       = NewDomainError(ErrorTypeExternal, "LLM provider error", nil)

	// Timeout Errors
	ErrPipelineTimeout = NewDomainError(ErrorTypeTimeout, "request exceeded the pipeline deadline", nil)
)

func errorTypeIs(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return errorTypeIs(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return errorTypeIs(err, ErrorTypeValidation) }

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool { return errorTypeIs(err, ErrorTypeUnauthorized) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return errorTypeIs(err, ErrorTypeForbidden) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return errorTypeIs(err, ErrorTypeInternal) }

// IsExternalError checks if an error is an external collaborator error
func IsExternalError(err error) bool { return errorTypeIs(err, ErrorTypeExternal) }

// IsTimeoutError checks if an error is a pipeline timeout
func IsTimeoutError(err error) bool { return errorTypeIs(err, ErrorTypeTimeout) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an external collaborator error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// NewValidationError creates a validation error with a custom message
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, nil)
}

// NewTimeoutError reports that stage did not finish before the pipeline deadline
func NewTimeoutError(stage string, err error) *DomainError {
	return NewDomainError(ErrorTypeTimeout, "request exceeded the pipeline deadline", err).
		WithDetail("stage", stage)
}
