package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/metrics"
	"github.com/bookhive/bookhive/src/internal/search"
	"github.com/bookhive/bookhive/src/internal/services"
)

// AIHandler serves the oracle-assisted endpoints: natural-language catalog
// search and reading-history recommendations.
type AIHandler struct {
	ai      *services.AIService
	metrics *metrics.Metrics
}

// NewAIHandler creates an AI handler. m may be nil to skip search counters.
func NewAIHandler(ai *services.AIService, m *metrics.Metrics) *AIHandler {
	return &AIHandler{ai: ai, metrics: m}
}

// NLSearchRequest is the free-text search payload.
type NLSearchRequest struct {
	Query string `json:"query"`
}

// nlPredicateResponse is the envelope when the translated predicate path
// succeeded.
type nlPredicateResponse struct {
	Query        string        `json:"query"`
	Method       string        `json:"method"`
	WhereClause  string        `json:"where_clause"`
	Books        []models.Book `json:"books"`
	Count        int           `json:"count"`
	NextCursor   *string       `json:"next_cursor"`
	FallbackUsed bool          `json:"fallback_used"`
}

// nlFallbackResponse is the envelope for the filter-extraction fallback. A
// null fallback_reason means the predicate itself was valid but would not
// execute.
type nlFallbackResponse struct {
	Query            string                   `json:"query"`
	Method           string                   `json:"method"`
	ExtractedFilters *search.ExtractedFilters `json:"extracted_filters"`
	Books            []models.Book            `json:"books"`
	Count            int                      `json:"count"`
	NextCursor       *string                  `json:"next_cursor"`
	FallbackUsed     bool                     `json:"fallback_used"`
	FallbackReason   *string                  `json:"fallback_reason"`
}

// SearchNL answers a natural-language catalog query. The response names the
// method that produced it so clients can tell a translated predicate from
// the extraction fallback.
func (h *AIHandler) SearchNL(c echo.Context) error {
	var req NLSearchRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}
	order, err := sortOrder(c, "asc")
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := h.ai.SearchNaturalLanguage(c.Request().Context(), services.NLSearchParams{
		Query:     req.Query,
		Limit:     limit,
		Cursor:    c.QueryParam("cursor"),
		SortOrder: order,
	})
	if err != nil {
		return err
	}

	books := result.Books
	if books == nil {
		books = []models.Book{}
	}
	if h.metrics != nil {
		h.metrics.SearchMetrics(result.FallbackUsed, len(books), time.Since(start))
	}

	if !result.FallbackUsed {
		return c.JSON(http.StatusOK, nlPredicateResponse{
			Query:       req.Query,
			Method:      result.Method,
			WhereClause: result.WhereClause,
			Books:       books,
			Count:       len(books),
			NextCursor:  nullableString(result.NextCursor),
		})
	}

	return c.JSON(http.StatusOK, nlFallbackResponse{
		Query:            req.Query,
		Method:           result.Method,
		ExtractedFilters: result.Filters,
		Books:            books,
		Count:            len(books),
		NextCursor:       nullableString(result.NextCursor),
		FallbackUsed:     true,
		FallbackReason:   nullableString(string(result.FallbackReason)),
	})
}

// recommendResponse is the recommendation payload. genre_filter echoes the
// requested genre, null when the request had none.
type recommendResponse struct {
	UserID          int64                      `json:"user_id"`
	GenreFilter     *string                    `json:"genre_filter"`
	Recommendations []services.RecommendedBook `json:"recommendations"`
	Count           int                        `json:"count"`
}

// Recommend picks catalog books matching the caller's reading history.
func (h *AIHandler) Recommend(c echo.Context) error {
	limit, err := pageLimit(c, 5, 20)
	if err != nil {
		return err
	}
	genre := c.QueryParam("genre")

	result, err := h.ai.Recommend(c.Request().Context(), auth.CurrentUser(c), genre, limit)
	if err != nil {
		return err
	}

	recs := result.Recommendations
	if recs == nil {
		recs = []services.RecommendedBook{}
	}
	return c.JSON(http.StatusOK, recommendResponse{
		UserID:          result.UserID,
		GenreFilter:     nullableString(result.GenreFilter),
		Recommendations: recs,
		Count:           len(recs),
	})
}
