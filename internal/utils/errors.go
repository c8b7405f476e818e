// Package contextutils provides error handling utilities and standardized error types
// for consistent error management across the report triage service.
package contextutils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a standardized error code for API responses
type ErrorCode string

const (
	// Database error codes

	// ErrorCodeDatabaseConnection indicates a database connection error
	ErrorCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	// ErrorCodeDatabaseQuery indicates a database query error
	ErrorCodeDatabaseQuery ErrorCode = "DATABASE_QUERY_ERROR"
	// ErrorCodeRecordNotFound indicates that a requested record was not found
	ErrorCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	// ErrorCodeRecordExists indicates that a record already exists (duplicate key)
	ErrorCodeRecordExists ErrorCode = "RECORD_ALREADY_EXISTS"

	// Validation error codes

	// ErrorCodeInvalidInput indicates that the provided input is invalid
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeValidationFailed indicates that validation has failed
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodePayloadTooLarge indicates that an upload exceeded its size ceiling
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	// Authentication error codes

	// ErrorCodeUnauthorized indicates that the user is not authorized
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeForbidden indicates that the user is forbidden from accessing the resource
	ErrorCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrorCodeInvalidCredentials indicates that the provided credentials are invalid
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// Service error codes

	// ErrorCodeServiceUnavailable indicates that the service is temporarily unavailable
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrorCodeTimeout indicates that a request has timed out
	ErrorCodeTimeout ErrorCode = "REQUEST_TIMEOUT"
	// ErrorCodeRateLimit indicates that the rate limit has been exceeded
	ErrorCodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrorCodeInternalError indicates an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_SERVER_ERROR"
	// ErrorCodeConflict indicates that an operation conflicts with the current state
	ErrorCodeConflict ErrorCode = "CONFLICT"

	// Report error codes

	// ErrorCodeInvalidStatusTransition indicates a status change that does not move the report forward
	ErrorCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	// ErrorCodeStorageFailed indicates that a media object could not be written or removed
	ErrorCodeStorageFailed ErrorCode = "STORAGE_FAILED"

	// Scoring oracle error codes

	// ErrorCodeOracleUnavailable indicates that the scoring oracle could not be reached
	ErrorCodeOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	// ErrorCodeOracleInvalidResponse indicates that the scoring oracle answered with an unusable body
	ErrorCodeOracleInvalidResponse ErrorCode = "ORACLE_RESPONSE_INVALID"
)

// SeverityLevel represents the severity of an error for logging and monitoring
type SeverityLevel string

const (
	// SeverityDebug indicates debug-level errors for development
	SeverityDebug SeverityLevel = "debug"
	// SeverityInfo indicates informational errors
	SeverityInfo SeverityLevel = "info"
	// SeverityWarn indicates warning-level errors
	SeverityWarn SeverityLevel = "warn"
	// SeverityError indicates error-level issues
	SeverityError SeverityLevel = "error"
	// SeverityFatal indicates fatal errors that require immediate attention
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
	// Fields carries per-field validation reasons keyed by request field name
	Fields map[string]string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

// Sentinels for errors.Is and for wrapping with WrapError/WrapErrorf. Comparison is by code.
var (
	ErrDatabaseConnection = NewAppError(ErrorCodeDatabaseConnection, SeverityError, "Database connection failed", "")
	ErrDatabaseQuery      = NewAppError(ErrorCodeDatabaseQuery, SeverityError, "Database query failed", "")
	ErrRecordNotFound     = NewAppError(ErrorCodeRecordNotFound, SeverityInfo, "Record not found", "")
	ErrRecordExists       = NewAppError(ErrorCodeRecordExists, SeverityInfo, "Record already exists", "")

	ErrInvalidInput     = NewAppError(ErrorCodeInvalidInput, SeverityWarn, "Invalid input", "")
	ErrValidationFailed = NewAppError(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", "")
	ErrPayloadTooLarge  = NewAppError(ErrorCodePayloadTooLarge, SeverityWarn, "Payload too large", "")

	ErrUnauthorized       = NewAppError(ErrorCodeUnauthorized, SeverityWarn, "Unauthorized", "")
	ErrForbidden          = NewAppError(ErrorCodeForbidden, SeverityWarn, "Forbidden", "")
	ErrInvalidCredentials = NewAppError(ErrorCodeInvalidCredentials, SeverityWarn, "Invalid credentials", "")

	ErrServiceUnavailable = NewAppError(ErrorCodeServiceUnavailable, SeverityError, "Service unavailable", "")
	ErrTimeout            = NewAppError(ErrorCodeTimeout, SeverityWarn, "Request timeout", "")
	ErrRateLimit          = NewAppError(ErrorCodeRateLimit, SeverityWarn, "Rate limit exceeded", "")
	ErrInternalError      = NewAppError(ErrorCodeInternalError, SeverityError, "Internal server error", "")
	ErrConflict           = NewAppError(ErrorCodeConflict, SeverityWarn, "Operation conflicts with current state", "")

	// Report status only moves forward through the lifecycle
	ErrInvalidStatusTransition = NewAppError(ErrorCodeInvalidStatusTransition, SeverityWarn, "Invalid status transition", "")
	ErrStorageFailed           = NewAppError(ErrorCodeStorageFailed, SeverityError, "Media storage failed", "")

	// Oracle failures never reach clients; scoring falls back instead
	ErrOracleUnavailable     = NewAppError(ErrorCodeOracleUnavailable, SeverityWarn, "Scoring oracle unavailable", "")
	ErrOracleInvalidResponse = NewAppError(ErrorCodeOracleInvalidResponse, SeverityWarn, "Scoring oracle response invalid", "")
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
		Cause:    cause,
	}
}

// NewValidationError builds a VALIDATION_FAILED error from per-field reasons.
// Details lists the fields in a stable order so log lines are comparable.
func NewValidationError(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+fields[name])
	}

	return &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  "Validation failed",
		Details:  strings.Join(parts, "; "),
		Fields:   fields,
	}
}

// WrapError wraps an error with additional context, preserving AppError structure if possible
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}

	// An AppError anywhere in the chain keeps its code, severity and fields
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:     appErr.Code,
			Severity: appErr.Severity,
			Message:  context,
			Details:  err.Error(),
			Cause:    err,
			Fields:   appErr.Fields,
		}
	}

	// For regular errors, create a generic internal error wrapper
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  context,
		Details:  err.Error(),
		Cause:    err,
	}
}

// WrapErrorf wraps an error with formatted context, preserving AppError structure if possible
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	// %w needs fmt.Errorf so the chain stays intact
	if strings.Contains(format, "%w") {
		wrappedErr := fmt.Errorf(format, args...)

		var appErr *AppError
		if errors.As(err, &appErr) {
			return &AppError{
				Code:     appErr.Code,
				Severity: appErr.Severity,
				Message:  wrappedErr.Error(),
				Details:  appErr.Error(),
				Cause:    wrappedErr,
				Fields:   appErr.Fields,
			}
		}

		return &AppError{
			Code:     ErrorCodeInternalError,
			Severity: SeverityError,
			Message:  wrappedErr.Error(),
			Details:  err.Error(),
			Cause:    wrappedErr,
		}
	}

	return WrapError(err, fmt.Sprintf(format, args...))
}

// ErrorWithContextf creates a new error with formatted context
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsError reports whether the chain holds an AppError with target's code
func IsError(err error, target *AppError) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == target.Code
}

// AsError finds the outermost AppError in the chain
func AsError(err error, target **AppError) bool {
	return errors.As(err, target)
}

// GetErrorCode returns the outermost AppError code, or INTERNAL_SERVER_ERROR
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// GetErrorSeverity returns the outermost AppError severity, or error
func GetErrorSeverity(err error) SeverityLevel {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Severity
	}
	return SeverityError
}

// IsRetryable reports whether a caller may try the same operation again
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Severity == SeverityFatal {
		return false
	}
	switch appErr.Code {
	case ErrorCodeTimeout, ErrorCodeServiceUnavailable, ErrorCodeDatabaseConnection,
		ErrorCodeRateLimit, ErrorCodeOracleUnavailable:
		return true
	}
	return false
}

// ToJSON converts an AppError to a JSON-serializable structure for API responses
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     string(e.Code),
		"message":  e.Message,
		"severity": string(e.Severity),
		"error":    e.Message,
	}

	if e.Details != "" {
		result["details"] = e.Details
	}

	if len(e.Fields) > 0 {
		result["fields"] = e.Fields
	}

	result["retryable"] = IsRetryable(e)

	if e.Cause != nil {
		switch e.Severity {
		case SeverityError, SeverityFatal:
			result["cause"] = e.Cause.Error()
		}
	}

	return result
}

// ContextKey represents a context key type for passing values through context
type ContextKey string

const (
	// UserIDKey is used to store the authenticated user ID in context
	UserIDKey ContextKey = "userID"
	// RequestIDKey is used to store the inbound request ID in context
	RequestIDKey ContextKey = "requestID"
)

// GetUserIDFromContext extracts the user ID from context, returning "" if not found
func GetUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithUserID returns a new context with the user ID set
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestIDFromContext extracts the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID returns a new context with the request ID set
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}
