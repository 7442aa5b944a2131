package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
)

// ReviewService manages book reviews. A member may review a book once, and
// only after borrowing it.
type ReviewService struct {
	db              *gorm.DB
	recommendations *cache.RecommendationCache
	logger          *zap.Logger
}

// NewReviewService creates a review service. recommendations may be nil;
// when set, a member's cached recommendations are dropped as their review
// history changes.
func NewReviewService(db *gorm.DB, recommendations *cache.RecommendationCache, logger *zap.Logger) *ReviewService {
	return &ReviewService{db: db, recommendations: recommendations, logger: logger}
}

// CreateReviewInput carries a new review's rating and text.
type CreateReviewInput struct {
	Rating int
	Text   string
}

// UpdateReviewInput modifies only the fields that are set.
type UpdateReviewInput struct {
	Rating *int
	Text   *string
}

// Create adds the actor's review of a book they have borrowed at least
// once. One review per member and book.
func (s *ReviewService) Create(ctx context.Context, actor *models.User, bookID int64, input CreateReviewInput) (*models.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.BadRequest("Rating must be between 1 and 5")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", bookID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check book: %w", err)
	}
	if count == 0 {
		return nil, apperrors.NotFound("Book")
	}

	if err := s.db.WithContext(ctx).Model(&models.Borrowing{}).
		Where("user_id = ? AND book_id = ?", actor.ID, bookID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check borrow history: %w", err)
	}
	if count == 0 {
		return nil, apperrors.BadRequest("You can only review books you have borrowed")
	}

	if err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("user_id = ? AND book_id = ?", actor.ID, bookID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if count > 0 {
		return nil, apperrors.BadRequest("You have already reviewed this book")
	}

	review := &models.Review{
		UserID: actor.ID,
		BookID: bookID,
		Rating: input.Rating,
		Text:   input.Text,
	}
	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	if s.recommendations != nil {
		s.recommendations.Invalidate(ctx, actor.ID)
	}
	s.logger.Info("review created",
		zap.Int64("review_id", review.ID),
		zap.Int64("user_id", actor.ID),
		zap.Int64("book_id", bookID),
		zap.Int("rating", review.Rating))
	return review, nil
}

// Update changes the set fields of a review. The reviewer or an admin.
func (s *ReviewService) Update(ctx context.Context, actor *models.User, id int64, input UpdateReviewInput) (*models.Review, error) {
	review, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != actor.ID && !actor.HasRole(models.RoleAdmin) {
		return nil, apperrors.Forbidden("Permission denied")
	}

	updates := map[string]any{}
	if input.Rating != nil {
		if *input.Rating < 1 || *input.Rating > 5 {
			return nil, apperrors.BadRequest("Rating must be between 1 and 5")
		}
		updates["rating"] = *input.Rating
		review.Rating = *input.Rating
	}
	if input.Text != nil {
		updates["text"] = *input.Text
		review.Text = *input.Text
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Review{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update review: %w", err)
		}
		if s.recommendations != nil {
			s.recommendations.Invalidate(ctx, review.UserID)
		}
	}
	return review, nil
}

// Delete removes a review. The reviewer or an admin.
func (s *ReviewService) Delete(ctx context.Context, actor *models.User, id int64) error {
	review, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != actor.ID && !actor.HasRole(models.RoleAdmin) {
		return apperrors.Forbidden("Permission denied")
	}

	if err := s.db.WithContext(ctx).Delete(&models.Review{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if s.recommendations != nil {
		s.recommendations.Invalidate(ctx, review.UserID)
	}

	s.logger.Info("review deleted", zap.Int64("review_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

// BookReviews pages one book's reviews newest first. An unknown book reads
// as an empty page.
func (s *ReviewService) BookReviews(ctx context.Context, bookID int64, limit int, cursor string) ([]models.Review, string, error) {
	q := s.db.WithContext(ctx).Where("book_id = ?", bookID)
	return s.page(ctx, q, limit, cursor)
}

// UserReviews pages one member's reviews newest first.
func (s *ReviewService) UserReviews(ctx context.Context, userID int64, limit int, cursor string) ([]models.Review, string, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	return s.page(ctx, q, limit, cursor)
}

// AverageRating returns a book's mean rating rounded to two decimals, or
// nil when the book has no reviews.
func (s *ReviewService) AverageRating(ctx context.Context, bookID int64) (*float64, error) {
	var avg sql.NullFloat64
	if err := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("book_id = ?", bookID).
		Select("AVG(rating)").
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	rounded := math.Round(avg.Float64*100) / 100
	return &rounded, nil
}

func (s *ReviewService) load(ctx context.Context, id int64) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Review")
		}
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	return &review, nil
}

func (s *ReviewService) page(ctx context.Context, q *gorm.DB, limit int, cursor string) ([]models.Review, string, error) {
	q, err := cursorScope(q, cursor)
	if err != nil {
		return nil, "", err
	}

	var reviews []models.Review
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&reviews).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list reviews: %w", err)
	}

	next := ""
	if len(reviews) > limit {
		reviews = reviews[:limit]
		last := reviews[limit-1]
		next = search.EncodeCompoundCursor(last.CreatedAt, last.ID)
	}
	return reviews, next, nil
}
