package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/metrics"
	"github.com/bookhive/bookhive/src/internal/services"
)

// AdminHandler serves the staff dashboard endpoints.
type AdminHandler struct {
	stats   *services.StatsService
	metrics *metrics.Metrics
	version string
}

func NewAdminHandler(stats *services.StatsService, m *metrics.Metrics, version string) *AdminHandler {
	return &AdminHandler{stats: stats, metrics: m, version: version}
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.stats.Overview(c.Request().Context(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Metrics returns the runtime and library counters snapshot.
func (h *AdminHandler) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.metrics.GetSnapshot(h.version))
}
