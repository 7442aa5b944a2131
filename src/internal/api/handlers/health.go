package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/ragproxy"
)

// HealthHandler reports dependency status. The endpoint always answers 200;
// "status" flips to unhealthy only when the database is unreachable, since
// every other dependency has a degraded mode.
type HealthHandler struct {
	db    *gorm.DB
	cache *cache.Manager
	rag   *ragproxy.Client
	cfg   *viper.Viper
}

// NewHealthHandler creates a health handler. rag may be nil when no document
// service is configured.
func NewHealthHandler(db *gorm.DB, cacheManager *cache.Manager, rag *ragproxy.Client, cfg *viper.Viper) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheManager, rag: rag, cfg: cfg}
}

// Health checks the database, cache backend, oracle configuration and the
// document service.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := "healthy"
	checks := map[string]string{}

	if err := h.pingDatabase(ctx); err != nil {
		status = "unhealthy"
		checks["database"] = fmt.Sprintf("error: %v", err)
	} else {
		checks["database"] = "connected"
	}

	checks["cache"] = h.cache.Backend()

	if h.cfg.GetString("ai.api_key") != "" {
		checks["oracle"] = "configured"
	} else {
		checks["oracle"] = "missing"
	}

	switch {
	case h.rag == nil:
		checks["rag"] = "not configured"
	case h.rag.Health(ctx) == nil:
		checks["rag"] = "available"
	default:
		checks["rag"] = "unavailable"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
