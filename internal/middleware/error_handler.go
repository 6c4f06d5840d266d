package middleware

import (
	"encoding/json"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"folio/internal/errors"
	"folio/internal/logger"
)

// RetryAfterSeconds is advertised on responses a client may retry
const RetryAfterSeconds = "60"

// ErrorHandler recovers panics into INTERNAL errors
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			"error", recovered,
			"stack", string(debug.Stack()),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		err := errors.NewAppError(
			errors.ErrCodeInternal,
			"Internal server error",
			nil,
		).WithRequestID(GetRequestID(c))

		handleError(c, err)
	})
}

// HandleError renders the last error a handler pushed with c.Error
func HandleError(c *gin.Context) {
	c.Next()

	if len(c.Errors) > 0 {
		handleError(c, c.Errors.Last().Err)
	}
}

// AbortWithError pushes err for HandleError and stops the chain
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	appErr := errors.WrapError(err, errors.ErrCodeInternal, "Internal server error")

	if appErr.RequestID == "" {
		appErr = appErr.WithRequestID(GetRequestID(c))
	}

	if userID := c.GetString(ContextUserID); userID != "" {
		appErr = appErr.WithUserID(userID)
	}

	logError(c, appErr)

	if c.Writer.Written() {
		return
	}

	if appErr.IsRetryable() {
		c.Header("Retry-After", RetryAfterSeconds)
	}

	response := errors.NewErrorResponse(appErr, c.Request.URL.Path)
	c.AbortWithStatusJSON(appErr.HTTPStatus(), response)
}

func logError(c *gin.Context, err *errors.AppError) {
	fields := []interface{}{
		"error_code", err.Code,
		"message", err.Message,
		"severity", err.Severity,
		"request_id", err.RequestID,
		"user_id", err.UserID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"user_agent", c.Request.UserAgent(),
		"ip", c.ClientIP(),
	}

	if err.Details != "" {
		fields = append(fields, "details", err.Details)
	}

	if len(err.Context) > 0 {
		contextJSON, _ := json.Marshal(err.Context)
		fields = append(fields, "context", string(contextJSON))
	}

	// the cause never reaches the client for INTERNAL errors, only the log
	if err.Cause != nil {
		fields = append(fields, "cause", err.Cause.Error())
	}

	switch err.Severity {
	case errors.SeverityCritical:
		logger.Error("Critical error occurred", fields...)
	case errors.SeverityHigh:
		logger.Error("High severity error occurred", fields...)
	case errors.SeverityMedium:
		logger.Warn("Medium severity error occurred", fields...)
	default:
		logger.Info("Low severity error occurred", fields...)
	}
}
