package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/metrics"
)

// Metrics records one counter and one duration sample per request. The
// status is resolved from the error before the error handler runs, since
// the response is not yet committed here.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var appErr *apperrors.Error
				var httpErr *echo.HTTPError
				switch {
				case errors.As(err, &appErr):
					status = appErr.Status
				case errors.As(err, &httpErr):
					status = httpErr.Code
				default:
					status = http.StatusInternalServerError
				}
			}

			m.RequestMetrics(c.Request().Method, c.Path(), status, time.Since(start))
			return err
		}
	}
}
