package contextutils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	withDetails := NewAppError(ErrorCodeInvalidStatusTransition, SeverityWarn, "Status can only move forward", "resolved -> reviewing")
	assert.Equal(t, "INVALID_STATUS_TRANSITION: Status can only move forward - resolved -> reviewing", withDetails.Error())

	bare := NewAppError(ErrorCodeRecordNotFound, SeverityInfo, "Report not found", "")
	assert.Equal(t, "RECORD_NOT_FOUND: Report not found", bare.Error())
}

func TestAppError_IsComparesCodes(t *testing.T) {
	err := NewAppError(ErrorCodeOracleUnavailable, SeverityWarn, "oracle timed out", "")

	assert.True(t, errors.Is(err, ErrOracleUnavailable))
	assert.False(t, errors.Is(err, ErrOracleInvalidResponse))
	assert.False(t, err.Is(errors.New("plain")))
}

func TestNewAppErrorWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppErrorWithCause(ErrorCodeStorageFailed, SeverityError, "Failed to store media", "bucket report-media", cause)

	assert.Equal(t, ErrorCodeStorageFailed, err.Code)
	assert.Equal(t, "bucket report-media", err.Details)
	assert.Same(t, cause, err.Unwrap())
}

func TestWrapError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, WrapError(nil, "failed to load report"))
		assert.Nil(t, WrapErrorf(nil, "failed to load report %s", "r-1"))
	})

	t.Run("app error keeps code and severity", func(t *testing.T) {
		wrapped := WrapError(ErrRecordNotFound, "failed to load report")

		var appErr *AppError
		require.True(t, AsError(wrapped, &appErr))
		assert.Equal(t, ErrorCodeRecordNotFound, appErr.Code)
		assert.Equal(t, ErrRecordNotFound.Severity, appErr.Severity)
		assert.Equal(t, "failed to load report", appErr.Message)
		assert.Contains(t, appErr.Details, ErrRecordNotFound.Message)
		assert.True(t, errors.Is(wrapped, ErrRecordNotFound))
	})

	t.Run("app error behind fmt wrapping keeps its code", func(t *testing.T) {
		inner := fmt.Errorf("lookup r-1: %w", ErrForbidden)
		wrapped := WrapError(inner, "failed to load report")

		assert.Equal(t, ErrorCodeForbidden, GetErrorCode(wrapped))
		assert.True(t, errors.Is(wrapped, ErrForbidden))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("pq: relation \"reports\" does not exist")
		wrapped := WrapError(cause, "failed to insert report")

		var appErr *AppError
		require.True(t, AsError(wrapped, &appErr))
		assert.Equal(t, ErrorCodeInternalError, appErr.Code)
		assert.Equal(t, SeverityError, appErr.Severity)
		assert.Equal(t, cause.Error(), appErr.Details)
		assert.True(t, errors.Is(wrapped, cause))
	})
}

func TestWrapErrorf(t *testing.T) {
	cause := errors.New("timeout")

	formatted := WrapErrorf(cause, "failed to score report %s", "r-1")
	assert.Equal(t, "failed to score report r-1", formatted.(*AppError).Message)

	chained := WrapErrorf(ErrOracleUnavailable, "scoring report %s: %w", "r-1", ErrOracleUnavailable)
	assert.Equal(t, ErrorCodeOracleUnavailable, GetErrorCode(chained))
	assert.True(t, errors.Is(chained, ErrOracleUnavailable))
}

func TestErrorWithContextf(t *testing.T) {
	err := ErrorWithContextf("service %s not found", "report")

	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(err))
	assert.Equal(t, SeverityError, GetErrorSeverity(err))
	assert.Equal(t, "INTERNAL_SERVER_ERROR: service report not found", err.Error())
}

func TestIsErrorAndAsError(t *testing.T) {
	assert.True(t, IsError(ErrPayloadTooLarge, ErrPayloadTooLarge))
	assert.True(t, IsError(fmt.Errorf("upload: %w", ErrPayloadTooLarge), ErrPayloadTooLarge))
	assert.False(t, IsError(ErrPayloadTooLarge, ErrValidationFailed))
	assert.False(t, IsError(errors.New("plain"), ErrPayloadTooLarge))

	var target *AppError
	assert.False(t, AsError(errors.New("plain"), &target))
	assert.Nil(t, target)
}

func TestErrorCodeAndSeverityDefaults(t *testing.T) {
	plain := errors.New("plain")
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(plain))
	assert.Equal(t, SeverityError, GetErrorSeverity(plain))
	assert.Equal(t, ErrorCodeConflict, GetErrorCode(ErrConflict))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "timeout", err: &AppError{Code: ErrorCodeTimeout, Severity: SeverityWarn}, expected: true},
		{name: "database connection", err: ErrDatabaseConnection, expected: true},
		{name: "rate limited", err: &AppError{Code: ErrorCodeRateLimit, Severity: SeverityWarn}, expected: true},
		{name: "oracle unavailable", err: WrapError(ErrOracleUnavailable, "scoring"), expected: true},
		{name: "fatal timeout", err: &AppError{Code: ErrorCodeTimeout, Severity: SeverityFatal}, expected: false},
		{name: "status transition", err: ErrInvalidStatusTransition, expected: false},
		{name: "validation", err: ErrValidationFailed, expected: false},
		{name: "plain error", err: errors.New("plain"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestAppError_ToJSON(t *testing.T) {
	err := &AppError{
		Code:     ErrorCodeInvalidInput,
		Severity: SeverityWarn,
		Message:  "Invalid input",
		Details:  "Field required",
		Cause:    errors.New("underlying error"),
	}

	json := err.ToJSON()

	assert.Equal(t, "INVALID_INPUT", json["code"])
	assert.Equal(t, "Invalid input", json["message"])
	assert.Equal(t, "warn", json["severity"])
	assert.Equal(t, "Field required", json["details"])
	assert.Equal(t, false, json["retryable"]) // Invalid input is not retryable
	assert.NotContains(t, json, "cause")      // Cause only included for error/fatal severity
}

func TestAppError_ToJSONIncludesFields(t *testing.T) {
	err := NewValidationError(map[string]string{
		"description":  "must be at least 20 characters",
		"incidentType": "must be one of physical cyber harassment other",
	})

	json := err.ToJSON()

	assert.Equal(t, "VALIDATION_FAILED", json["code"])
	assert.Equal(t, "description: must be at least 20 characters; incidentType: must be one of physical cyber harassment other", json["details"])
	fields, ok := json["fields"].(map[string]string)
	assert.True(t, ok)
	assert.Len(t, fields, 2)
}

func TestWrapError_PreservesFields(t *testing.T) {
	original := NewValidationError(map[string]string{"location.lat": "must be between -90 and 90"})

	wrapped := WrapError(original, "invalid report submission")

	var appErr *AppError
	assert.True(t, AsError(wrapped, &appErr))
	assert.Equal(t, ErrorCodeValidationFailed, appErr.Code)
	assert.Equal(t, "must be between -90 and 90", appErr.Fields["location.lat"])
	assert.True(t, errors.Is(wrapped, ErrValidationFailed))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserIDFromContext(ctx))
	assert.Equal(t, "", GetRequestIDFromContext(ctx))

	ctx = WithUserID(ctx, "9b2f0a4e-1c3d-4e5f-8a7b-6c5d4e3f2a1b")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "9b2f0a4e-1c3d-4e5f-8a7b-6c5d4e3f2a1b", GetUserIDFromContext(ctx))
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
}
