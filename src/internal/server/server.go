// Package server assembles the application: it builds the service graph
// from config and hands every request to the HTTP layer.
package server

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	echoMiddleware "github.com/bookhive/bookhive/src/internal/api/middleware"
	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/cache"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/email"
	"github.com/bookhive/bookhive/src/internal/metrics"
	"github.com/bookhive/bookhive/src/internal/ragproxy"
)

// Server owns the echo instance and the long-lived infrastructure every
// request shares: storage, cache, auth, mail queue and counters.
type Server struct {
	echo      *echo.Echo
	config    *viper.Viper
	db        *gorm.DB
	logger    *zap.Logger
	cache     *cache.Manager
	auth      *auth.AuthService
	metrics   *metrics.Metrics
	notices   *email.NoticeService
	processor *email.Processor
	collector *metrics.Collector
	rag       *ragproxy.Client
	version   string
}

// New wires the full application. The returned server is ready to Start;
// nothing here touches the network yet.
func New(cfg *viper.Viper, db *gorm.DB, logger *zap.Logger, version string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewEchoValidator()
	e.HTTPErrorHandler = apperrors.HTTPErrorHandler(logger)

	cacheManager := cache.NewManager(cfg, logger)
	tokens := cache.NewTokenStore(cacheManager, logger)
	authService := auth.NewAuthService(db, cfg, tokens, logger)

	m := metrics.NewMetrics(db)

	mailer := email.NewMailer(cfg)
	notices := email.NewNoticeService(db, mailer, logger)

	// The proxy stays nil when explicitly disabled; the /rag routes and the
	// health check then report the document service as not configured.
	var ragClient *ragproxy.Client
	if cfg.GetString("rag.base_url") != "" {
		ragClient = ragproxy.New(cfg, logger)
	}

	s := &Server{
		echo:      e,
		config:    cfg,
		db:        db,
		logger:    logger,
		cache:     cacheManager,
		auth:      authService,
		metrics:   m,
		notices:   notices,
		processor: email.NewProcessor(notices, cfg, logger),
		collector: metrics.NewCollector(m, 15*time.Second),
		rag:       ragClient,
		version:   version,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Start launches the background workers and serves HTTP until the listener
// closes. The processor decides for itself whether mail is enabled.
func (s *Server) Start(ctx context.Context, address string) error {
	go s.processor.Start(ctx)
	s.collector.Start(ctx)

	return s.echo.Start(address)
}

// Shutdown stops the workers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.processor.Stop()
	s.collector.Stop()
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	bodyLimit := s.config.GetString("server.body_limit")
	if bodyLimit == "" {
		bodyLimit = "8M"
	}
	s.echo.Use(middleware.BodyLimit(bodyLimit))
	s.echo.Use(echoMiddleware.RequestLogger(s.logger))
	s.echo.Use(echoMiddleware.CORS(s.config))
	s.echo.Use(echoMiddleware.Security())
	s.echo.Use(echoMiddleware.Metrics(s.metrics))
}
