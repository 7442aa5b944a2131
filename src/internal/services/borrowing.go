package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
)

// BorrowingService manages loans: who may borrow, for how long, and the
// one-active-loan-per-member rule.
type BorrowingService struct {
	db              *gorm.DB
	recommendations *cache.RecommendationCache
	loanDays        int
	maxActive       int
	logger          *zap.Logger
}

// NewBorrowingService creates a borrowing service. Loan length and the
// active-loan cap come from borrowing.loan_days and borrowing.max_active.
// recommendations may be nil; when set, a member's cached recommendations
// are dropped as their borrow history grows.
func NewBorrowingService(db *gorm.DB, cfg *viper.Viper, recommendations *cache.RecommendationCache, logger *zap.Logger) *BorrowingService {
	loanDays := cfg.GetInt("borrowing.loan_days")
	if loanDays <= 0 {
		loanDays = 14
	}
	maxActive := cfg.GetInt("borrowing.max_active")
	if maxActive <= 0 {
		maxActive = 1
	}
	return &BorrowingService{
		db:              db,
		recommendations: recommendations,
		loanDays:        loanDays,
		maxActive:       maxActive,
		logger:          logger,
	}
}

// Borrow checks out a book for userID. Members borrow for themselves;
// borrowing on behalf of someone else takes an admin. The member must be
// under the active-loan cap and the book must not be out already.
func (s *BorrowingService) Borrow(ctx context.Context, actor *models.User, userID, bookID int64) (*models.Borrowing, error) {
	if userID != actor.ID {
		if !actor.HasRole(models.RoleAdmin) {
			return nil, apperrors.Forbidden("Cannot borrow books for other users")
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check user: %w", err)
		}
		if count == 0 {
			return nil, apperrors.NotFound("User")
		}
	}

	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Book")
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	var active int64
	if err := s.db.WithContext(ctx).Model(&models.Borrowing{}).
		Where("user_id = ? AND returned_at IS NULL", userID).
		Count(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	if active >= int64(s.maxActive) {
		return nil, apperrors.BadRequest("You already have a book borrowed. Please return it before borrowing another book")
	}

	var out int64
	if err := s.db.WithContext(ctx).Model(&models.Borrowing{}).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Count(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to check book availability: %w", err)
	}
	if out > 0 {
		return nil, apperrors.BadRequest("Book is currently borrowed")
	}

	now := time.Now().UTC()
	borrowing := &models.Borrowing{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: now,
		DueDate:    now.AddDate(0, 0, s.loanDays),
	}
	if err := s.db.WithContext(ctx).Create(borrowing).Error; err != nil {
		return nil, fmt.Errorf("failed to create borrowing: %w", err)
	}
	borrowing.Book = &book

	if s.recommendations != nil {
		s.recommendations.Invalidate(ctx, userID)
	}
	s.logger.Info("book borrowed",
		zap.Int64("borrowing_id", borrowing.ID),
		zap.Int64("user_id", userID),
		zap.Int64("book_id", bookID),
		zap.Time("due_date", borrowing.DueDate))
	return borrowing, nil
}

// Return closes a loan. The borrower, a librarian or an admin may return it;
// a loan can only be returned once.
func (s *BorrowingService) Return(ctx context.Context, actor *models.User, id int64) (*models.Borrowing, error) {
	borrowing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrowing.UserID != actor.ID && !actor.IsStaff() {
		return nil, apperrors.Forbidden("Permission denied")
	}
	if borrowing.ReturnedAt != nil {
		return nil, apperrors.BadRequest("Book already returned")
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Borrowing{}).Where("id = ?", id).Update("returned_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to return borrowing: %w", err)
	}
	borrowing.ReturnedAt = &now

	s.logger.Info("book returned", zap.Int64("borrowing_id", id), zap.Int64("book_id", borrowing.BookID))
	return borrowing, nil
}

// Get returns one loan. Visible to its borrower and to staff.
func (s *BorrowingService) Get(ctx context.Context, actor *models.User, id int64) (*models.Borrowing, error) {
	borrowing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if borrowing.UserID != actor.ID && !actor.IsStaff() {
		return nil, apperrors.Forbidden("Permission denied")
	}
	return borrowing, nil
}

// ListByUser pages one member's loans newest first. Members see their own;
// staff see anyone's.
func (s *BorrowingService) ListByUser(ctx context.Context, actor *models.User, userID int64, limit int, cursor string) ([]models.Borrowing, string, error) {
	if userID != actor.ID && !actor.IsStaff() {
		return nil, "", apperrors.Forbidden("Permission denied")
	}
	q := s.db.WithContext(ctx).Preload("Book").Where("user_id = ?", userID)
	return s.page(ctx, q, limit, cursor)
}

// ListActive pages loans that are still out. Staff only.
func (s *BorrowingService) ListActive(ctx context.Context, actor *models.User, limit int, cursor string) ([]models.Borrowing, string, error) {
	if !actor.IsStaff() {
		return nil, "", apperrors.Forbidden("Permission denied")
	}
	q := s.db.WithContext(ctx).Preload("User").Preload("Book").Where("returned_at IS NULL")
	return s.page(ctx, q, limit, cursor)
}

// ListOverdue pages active loans past their due date. Staff only. The
// filter runs in SQL so pages stay full.
func (s *BorrowingService) ListOverdue(ctx context.Context, actor *models.User, limit int, cursor string) ([]models.Borrowing, string, error) {
	if !actor.IsStaff() {
		return nil, "", apperrors.Forbidden("Permission denied")
	}
	q := s.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("returned_at IS NULL AND due_date < ?", time.Now().UTC())
	return s.page(ctx, q, limit, cursor)
}

// OverdueLoans returns every active loan past its due date with borrower
// and book loaded. Used by the overdue-reminder scan.
func (s *BorrowingService) OverdueLoans(ctx context.Context) ([]models.Borrowing, error) {
	var loans []models.Borrowing
	if err := s.db.WithContext(ctx).Preload("User").Preload("Book").
		Where("returned_at IS NULL AND due_date < ?", time.Now().UTC()).
		Order("due_date ASC").
		Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("failed to load overdue loans: %w", err)
	}
	return loans, nil
}

func (s *BorrowingService) load(ctx context.Context, id int64) (*models.Borrowing, error) {
	var borrowing models.Borrowing
	if err := s.db.WithContext(ctx).Preload("Book").First(&borrowing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Borrowing")
		}
		return nil, fmt.Errorf("failed to load borrowing: %w", err)
	}
	return &borrowing, nil
}

func (s *BorrowingService) page(ctx context.Context, q *gorm.DB, limit int, cursor string) ([]models.Borrowing, string, error) {
	q, err := cursorScope(q, cursor)
	if err != nil {
		return nil, "", err
	}

	var loans []models.Borrowing
	if err := q.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&loans).Error; err != nil {
		return nil, "", fmt.Errorf("failed to list borrowings: %w", err)
	}

	next := ""
	if len(loans) > limit {
		loans = loans[:limit]
		last := loans[limit-1]
		next = search.EncodeCompoundCursor(last.CreatedAt, last.ID)
	}
	return loans, next, nil
}
