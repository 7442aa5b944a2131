package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/oracle"
	"github.com/bookhive/bookhive/src/internal/search"
)

// Method names reported in natural-language search responses.
const (
	MethodPredicate = "sql_where_clause"
	MethodFilters   = "filter_extraction"
)

const (
	maxNLQueryRunes    = 500
	maxPageSize        = 100
	historyLimit       = 20
	catalogSampleLimit = 100
)

// NLSearchParams are the inputs of one natural-language search.
type NLSearchParams struct {
	Query     string
	Limit     int
	Cursor    string
	SortOrder string
}

// NLSearchResult is one natural-language search outcome: an executed
// predicate, or the filter-extraction fallback with the reason the
// predicate path was abandoned. A zero FallbackReason on a fallback result
// means the predicate itself was fine but would not execute.
type NLSearchResult struct {
	Method         string
	WhereClause    string
	Filters        *search.ExtractedFilters
	Books          []models.Book
	NextCursor     string
	FallbackUsed   bool
	FallbackReason search.FailureReason
}

// RecommendedBook is one catalog pick returned by Recommend.
type RecommendedBook struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	ISBN   string `json:"isbn"`
}

// RecommendResult is the recommendation payload for one reader.
type RecommendResult struct {
	UserID          int64
	GenreFilter     string
	Recommendations []RecommendedBook
	Count           int
}

// AIService implements the oracle-assisted operations: natural-language
// catalog search and reading-history recommendations.
type AIService struct {
	db              *gorm.DB
	engine          *search.Engine
	translator      *search.Translator
	extractor       *search.Extractor
	recommender     *search.Recommender
	recommendations *cache.RecommendationCache
	logger          *zap.Logger
}

// NewAIService wires the translator, extractor and recommender around one
// oracle completer. recommendations may be nil to disable response caching.
func NewAIService(db *gorm.DB, engine *search.Engine, completer oracle.Completer, recommendations *cache.RecommendationCache, cfg *viper.Viper, logger *zap.Logger) *AIService {
	matcher := &search.Matcher{
		AuthorThreshold: cfg.GetFloat64("search.fuzzy_author_threshold"),
		GenreOverlap:    cfg.GetFloat64("search.fuzzy_genre_overlap"),
		GenreCutoff:     cfg.GetFloat64("search.fuzzy_genre_cutoff"),
	}
	vocab := search.NewVocab(db)
	return &AIService{
		db:              db,
		engine:          engine,
		translator:      search.NewTranslator(completer, matcher, vocab, logger),
		extractor:       search.NewExtractor(completer, matcher, vocab, logger),
		recommender:     search.NewRecommender(completer, logger),
		recommendations: recommendations,
		logger:          logger,
	}
}

// SearchNaturalLanguage translates free text into a validated predicate and
// executes it. When translation or execution fails, it falls back to
// structured filter extraction over the regular search cascade. Input
// problems surface as 400s before any oracle round-trip.
func (s *AIService) SearchNaturalLanguage(ctx context.Context, p NLSearchParams) (*NLSearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, apperrors.BadRequest("Query cannot be empty")
	}
	if utf8.RuneCountInString(p.Query) > maxNLQueryRunes {
		return nil, apperrors.BadRequest("Query too long (max 500 characters)")
	}
	if p.Limit < 1 || p.Limit > maxPageSize {
		return nil, apperrors.BadRequest("Limit must be between 1 and 100")
	}

	translation := s.translator.Translate(ctx, p.Query)
	reason := translation.Reason
	if translation.Ok() {
		page, err := s.engine.ExecutePredicate(ctx, translation.WhereClause, p.Limit, p.Cursor, p.SortOrder)
		switch {
		case err == nil:
			return &NLSearchResult{
				Method:      MethodPredicate,
				WhereClause: translation.WhereClause,
				Books:       page.Books,
				NextCursor:  page.NextCursor,
			}, nil
		case errors.Is(err, search.ErrInvalidCursor):
			return nil, apperrors.BadRequest("Invalid cursor format")
		default:
			s.logger.Warn("predicate execution failed, falling back to filter extraction",
				zap.String("where_clause", translation.WhereClause),
				zap.Error(err))
			// The predicate was valid, so the fallback carries no reason.
			reason = search.FailureNone
		}
	} else {
		s.logger.Info("predicate translation rejected",
			zap.String("reason", string(reason)),
			zap.String("error", translation.Err))
	}

	return s.fallbackSearch(ctx, p, reason)
}

func (s *AIService) fallbackSearch(ctx context.Context, p NLSearchParams, reason search.FailureReason) (*NLSearchResult, error) {
	filters, err := s.extractor.Extract(ctx, p.Query)
	if err != nil {
		return nil, apperrors.Internal("AI search service unavailable", err)
	}

	keywords := p.Query
	if filters.Keywords != nil && strings.TrimSpace(*filters.Keywords) != "" {
		keywords = *filters.Keywords
	}
	sp := search.SearchParams{
		Query:     keywords,
		Limit:     p.Limit,
		Cursor:    p.Cursor,
		SortOrder: p.SortOrder,
	}
	if filters.Author != nil {
		sp.Filters.Author = *filters.Author
	}
	if filters.Genre != nil {
		sp.Filters.Genre = *filters.Genre
	}
	if filters.Year != nil {
		sp.Filters.Year = *filters.Year
	}

	page, err := s.engine.SimpleSearch(ctx, sp)
	if err != nil {
		if errors.Is(err, search.ErrInvalidCursor) {
			return nil, apperrors.BadRequest("Invalid cursor format")
		}
		return nil, apperrors.Internal("AI search service unavailable", err)
	}

	return &NLSearchResult{
		Method:         MethodFilters,
		Filters:        &filters,
		Books:          page.Books,
		NextCursor:     page.NextCursor,
		FallbackUsed:   true,
		FallbackReason: reason,
	}, nil
}

// Recommend picks up to limit catalog books matching the actor's reading
// history. Results are cached per user, genre and limit; oracle failures
// read as an empty list rather than an error.
func (s *AIService) Recommend(ctx context.Context, actor *models.User, genre string, limit int) (*RecommendResult, error) {
	if limit < 1 || limit > 20 {
		return nil, apperrors.BadRequest("Limit must be between 1 and 20")
	}

	cacheGenre := genre
	if cacheGenre == "" {
		cacheGenre = "all"
	}
	var books []RecommendedBook
	if s.recommendations != nil && s.recommendations.Get(ctx, actor.ID, cacheGenre, limit, &books) {
		return &RecommendResult{UserID: actor.ID, GenreFilter: genre, Recommendations: books, Count: len(books)}, nil
	}

	borrowed, reviewed, err := s.history(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.Internal("AI recommendation service unavailable", err)
	}
	candidates, err := s.catalogSample(ctx, genre)
	if err != nil {
		return nil, apperrors.Internal("AI recommendation service unavailable", err)
	}

	ids := s.recommender.Recommend(ctx, borrowed, reviewed, candidates, genre, limit)
	books, err = s.resolveBooks(ctx, ids, limit)
	if err != nil {
		return nil, apperrors.Internal("AI recommendation service unavailable", err)
	}

	if s.recommendations != nil {
		s.recommendations.Set(ctx, actor.ID, cacheGenre, limit, books)
	}
	return &RecommendResult{UserID: actor.ID, GenreFilter: genre, Recommendations: books, Count: len(books)}, nil
}

func (s *AIService) history(ctx context.Context, userID int64) (borrowed, reviewed []search.HistoryEntry, err error) {
	var loans []models.Borrowing
	if err := s.db.WithContext(ctx).Preload("Book").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(historyLimit).
		Find(&loans).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load borrow history: %w", err)
	}
	for _, loan := range loans {
		if loan.Book == nil {
			continue
		}
		borrowed = append(borrowed, search.HistoryEntry{
			Title:  loan.Book.Title,
			Author: loan.Book.Author,
			Genre:  loan.Book.Genre,
		})
	}

	var reviews []models.Review
	if err := s.db.WithContext(ctx).Preload("Book").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(historyLimit).
		Find(&reviews).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load review history: %w", err)
	}
	for i := range reviews {
		review := &reviews[i]
		if review.Book == nil {
			continue
		}
		rating := review.Rating
		reviewed = append(reviewed, search.HistoryEntry{
			Title:  review.Book.Title,
			Author: review.Book.Author,
			Genre:  review.Book.Genre,
			Rating: &rating,
		})
	}
	return borrowed, reviewed, nil
}

func (s *AIService) catalogSample(ctx context.Context, genre string) ([]search.CandidateBook, error) {
	q := s.db.WithContext(ctx).Model(&models.Book{})
	if genre != "" {
		q = q.Where("LOWER(genre) LIKE ?", "%"+strings.ToLower(genre)+"%")
	}

	var candidates []search.CandidateBook
	if err := q.Select("id, title, author, genre").Limit(catalogSampleLimit).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to sample catalog: %w", err)
	}
	return candidates, nil
}

// resolveBooks keeps the oracle's ordering, drops IDs it invented, and
// collapses duplicates.
func (s *AIService) resolveBooks(ctx context.Context, ids []int64, limit int) ([]RecommendedBook, error) {
	books := make([]RecommendedBook, 0, len(ids))
	if len(ids) == 0 {
		return books, nil
	}

	var rows []models.Book
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve recommendations: %w", err)
	}
	byID := make(map[int64]*models.Book, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	for _, id := range ids {
		book, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		books = append(books, RecommendedBook{
			ID:     book.ID,
			Title:  book.Title,
			Author: book.Author,
			Genre:  book.Genre,
			ISBN:   book.ISBN,
		})
		if len(books) == limit {
			break
		}
	}
	return books, nil
}
