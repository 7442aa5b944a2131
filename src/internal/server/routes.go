package server

import (
	"time"

	"github.com/bookhive/bookhive/src/internal/api/handlers"
	echoMiddleware "github.com/bookhive/bookhive/src/internal/api/middleware"
	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/oracle"
	"github.com/bookhive/bookhive/src/internal/search"
	"github.com/bookhive/bookhive/src/internal/services"
)

// setupRoutes builds the service layer and registers every route under
// /api/v1. Catalog reads are public; everything else runs behind bearer
// auth, with staff gates where the operation changes shared state.
func (s *Server) setupRoutes() {
	authMW := auth.NewMiddleware(s.auth)

	engine := search.NewEngine(s.db, search.Config{
		FTSWeight:     s.config.GetFloat64("search.rank_fts_weight"),
		TrigramWeight: s.config.GetFloat64("search.rank_trigram_weight"),
		TrigramFloor:  s.config.GetFloat64("search.trigram_floor"),
	}, s.logger)

	completer := oracle.NewClient(oracle.Config{
		APIKey:  s.config.GetString("ai.api_key"),
		BaseURL: s.config.GetString("ai.base_url"),
		Model:   s.config.GetString("ai.model"),
		Timeout: time.Duration(s.config.GetInt("ai.timeout_seconds")) * time.Second,
	}, s.logger)

	recommendations := cache.NewRecommendationCache(s.cache, s.config.GetDuration("ai.recommend_cache_ttl"))

	bookService := services.NewBookService(s.db, engine, s.logger)
	borrowingService := services.NewBorrowingService(s.db, s.config, recommendations, s.logger)
	reviewService := services.NewReviewService(s.db, recommendations, s.logger)
	userService := services.NewUserService(s.db, s.logger)
	statsService := services.NewStatsService(s.db)
	aiService := services.NewAIService(s.db, engine, completer, recommendations, s.config, s.logger)

	// A nil *ragproxy.Client must not end up inside the interface value, or
	// the nil check in the service would pass and calls would panic.
	var index services.DocumentIndex
	if s.rag != nil {
		index = s.rag
	}
	ragService := services.NewRagService(s.db, index, s.logger)

	authHandler := handlers.NewAuthHandler(s.auth, s.notices, s.metrics)
	bookHandler := handlers.NewBookHandler(bookService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	userHandler := handlers.NewUserHandler(userService)
	borrowingHandler := handlers.NewBorrowingHandler(borrowingService)
	aiHandler := handlers.NewAIHandler(aiService, s.metrics)
	ragHandler := handlers.NewRagHandler(ragService)
	adminHandler := handlers.NewAdminHandler(statsService, s.metrics, s.version)
	healthHandler := handlers.NewHealthHandler(s.db, s.cache, s.rag, s.config)

	api := s.echo.Group("/api/v1")

	api.GET("/health", healthHandler.Health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout, authMW.RequireAuth())
	authGroup.GET("/me", authHandler.Me, authMW.RequireAuth())
	authGroup.POST("/totp/setup", authHandler.TOTPSetup, authMW.RequireAuth(), authMW.RequireStaff())
	authGroup.POST("/totp/verify", authHandler.TOTPVerify, authMW.RequireAuth(), authMW.RequireStaff())

	books := api.Group("/books")
	books.GET("", bookHandler.List)
	books.GET("/:id", bookHandler.Get)
	books.POST("", bookHandler.Create, authMW.RequireAuth(), authMW.RequireStaff())
	books.PUT("/:id", bookHandler.Update, authMW.RequireAuth(), authMW.RequireStaff())
	books.DELETE("/:id", bookHandler.Delete, authMW.RequireAuth(), authMW.RequireStaff())
	books.GET("/:id/reviews", reviewHandler.BookReviews)
	books.GET("/:id/reviews/rating", reviewHandler.BookRating)
	books.POST("/:id/reviews", reviewHandler.Create, authMW.RequireAuth())

	reviews := api.Group("/reviews", authMW.RequireAuth())
	reviews.PUT("/:id", reviewHandler.Update)
	reviews.DELETE("/:id", reviewHandler.Delete)

	users := api.Group("/users", authMW.RequireAuth())
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)
	users.GET("/:id/reviews", reviewHandler.UserReviews)

	borrowings := api.Group("/borrowings", authMW.RequireAuth())
	borrowings.POST("", borrowingHandler.Borrow)
	borrowings.GET("", borrowingHandler.List)
	borrowings.GET("/:id", borrowingHandler.Get)
	borrowings.PATCH("/:id/return", borrowingHandler.Return)

	// Oracle round-trips are the expensive path, so only /ai is rate limited.
	limiter := echoMiddleware.NewRateLimiter(s.config)
	ai := api.Group("/ai", authMW.RequireAuth(), limiter.Middleware())
	ai.POST("/books/search_nl", aiHandler.SearchNL)
	ai.GET("/books/recommend", aiHandler.Recommend)

	rag := api.Group("/rag", authMW.RequireAuth())
	rag.POST("/upload", ragHandler.Upload)
	rag.POST("/ask", ragHandler.Ask)
	rag.DELETE("/documents/:id", ragHandler.Delete)

	admin := api.Group("/admin", authMW.RequireAuth(), authMW.RequireStaff())
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/metrics", adminHandler.Metrics)
}
