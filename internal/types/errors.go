package types

import "fmt"

// Error codes used across the service layer. The API layer maps these to
// HTTP status codes.
const (
	ErrCodeInvalidDateRange   = "INVALID_DATE_RANGE"
	ErrCodeForbiddenExhausted = "FORBIDDEN_EXHAUSTED"
	ErrCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrCodeEmptyResponse      = "EMPTY_RESPONSE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// ServiceError is a structured error carrying a stable code for callers that
// need to branch on the failure class.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewServiceError creates a ServiceError with a formatted message.
func NewServiceError(code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
