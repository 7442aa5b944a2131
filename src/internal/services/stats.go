package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
)

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalUsers       int64   `json:"total_users"`
	TotalBooks       int64   `json:"total_books"`
	TotalBorrowings  int64   `json:"total_borrowings"`
	ActiveBorrowings int64   `json:"active_borrowings"`
	TotalReviews     int64   `json:"total_reviews"`
	AverageRating    float64 `json:"average_rating"`
}

// StatsService aggregates the dashboard counters.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a stats service.
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// Overview counts accounts, catalog size, loans and reviews. Staff only.
// The average rating is rounded to two decimals and reads 0 when there are
// no reviews.
func (s *StatsService) Overview(ctx context.Context, actor *models.User) (*Stats, error) {
	if !actor.IsStaff() {
		return nil, apperrors.Forbidden("Permission denied")
	}

	db := s.db.WithContext(ctx)
	var stats Stats

	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := db.Model(&models.Book{}).Count(&stats.TotalBooks).Error; err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	if err := db.Model(&models.Borrowing{}).Count(&stats.TotalBorrowings).Error; err != nil {
		return nil, fmt.Errorf("failed to count borrowings: %w", err)
	}
	if err := db.Model(&models.Borrowing{}).Where("returned_at IS NULL").Count(&stats.ActiveBorrowings).Error; err != nil {
		return nil, fmt.Errorf("failed to count active borrowings: %w", err)
	}
	if err := db.Model(&models.Review{}).Count(&stats.TotalReviews).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	var avg sql.NullFloat64
	if err := db.Model(&models.Review{}).Select("AVG(rating)").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = math.Round(avg.Float64*100) / 100
	}

	return &stats, nil
}
