package handlers

import (
	"errors"
	"net/http"

	contextutils "safereport/internal/utils"

	"github.com/gin-gonic/gin"
)

var statusByCode = map[contextutils.ErrorCode]int{
	contextutils.ErrorCodeInvalidInput:     http.StatusBadRequest,
	contextutils.ErrorCodeValidationFailed: http.StatusBadRequest,

	contextutils.ErrorCodeUnauthorized:       http.StatusUnauthorized,
	contextutils.ErrorCodeInvalidCredentials: http.StatusUnauthorized,
	contextutils.ErrorCodeForbidden:          http.StatusForbidden,
	contextutils.ErrorCodeRecordNotFound:     http.StatusNotFound,

	contextutils.ErrorCodeRecordExists:            http.StatusConflict,
	contextutils.ErrorCodeConflict:                http.StatusConflict,
	contextutils.ErrorCodeInvalidStatusTransition: http.StatusConflict,

	contextutils.ErrorCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	contextutils.ErrorCodeRateLimit:       http.StatusTooManyRequests,

	contextutils.ErrorCodeServiceUnavailable:    http.StatusServiceUnavailable,
	contextutils.ErrorCodeDatabaseConnection:    http.StatusServiceUnavailable,
	contextutils.ErrorCodeOracleUnavailable:     http.StatusServiceUnavailable,
	contextutils.ErrorCodeOracleInvalidResponse: http.StatusBadGateway,
	contextutils.ErrorCodeTimeout:               http.StatusGatewayTimeout,
}

// httpStatusFor maps an error code onto its response status, 500 when unmapped
func httpStatusFor(code contextutils.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleAppError writes the JSON error body for err. The AppError is searched for
// along the whole chain since transaction helpers may join a rollback failure onto it.
// Server-side failures are attached to the gin context so the request logger sees them.
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if !errors.As(err, &appErr) {
		appErr = contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInternalError,
			contextutils.SeverityError, "Internal server error", err.Error(), err)
	}

	if appErr.Severity == contextutils.SeverityError || appErr.Severity == contextutils.SeverityFatal {
		_ = c.Error(err)
	}
	c.JSON(httpStatusFor(appErr.Code), appErr.ToJSON())
}
