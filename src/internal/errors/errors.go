// Package errors carries typed application errors that map one-to-one onto
// HTTP responses. Services return these for expected failures; anything
// else surfaces as a 500 with the cause kept out of the response body.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Error is an application failure with an HTTP classification. Message is
// safe to show to clients; Cause is not.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with an explicit status.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// NotFound reports a missing resource, e.g. NotFound("Book").
func NotFound(resource string) *Error {
	return New(http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest reports invalid client input or a violated domain rule.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

// Unauthorized reports missing or bad credentials.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// Forbidden reports an authenticated caller without the needed rights.
func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

// Unavailable reports a dependency that is temporarily down.
func Unavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, message)
}

// Internal wraps an unexpected failure. The cause is logged, never sent.
func Internal(message string, cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Cause: cause}
}

// HTTPErrorHandler renders every failure as {"detail": message}. Server
// faults are logged with their cause; client faults only at debug level.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := "Internal server error"

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case stderrors.As(err, &appErr):
			status = appErr.Status
			detail = appErr.Message
		case stderrors.As(err, &httpErr):
			status = httpErr.Code
			detail = fmt.Sprintf("%v", httpErr.Message)
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.Int("status", status),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		} else {
			logger.Debug("request rejected",
				zap.Int("status", status),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.String("detail", detail))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, map[string]string{"detail": detail})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}
