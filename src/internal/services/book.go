package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
)

// BookService manages the book catalog.
type BookService struct {
	db     *gorm.DB
	engine *search.Engine
	logger *zap.Logger
}

// NewBookService creates a book service backed by db and the search engine.
func NewBookService(db *gorm.DB, engine *search.Engine, logger *zap.Logger) *BookService {
	return &BookService{db: db, engine: engine, logger: logger}
}

// CreateBookInput carries the fields of a new catalog entry.
type CreateBookInput struct {
	Title         string
	Description   string
	ISBN          string
	Author        string
	Genre         string
	PublishedDate time.Time
}

// UpdateBookInput modifies only the fields that are set.
type UpdateBookInput struct {
	Title         *string
	Description   *string
	ISBN          *string
	Author        *string
	Genre         *string
	PublishedDate *time.Time
}

// Create adds a book to the catalog. Staff only; the ISBN must be unique.
func (s *BookService) Create(ctx context.Context, actor *models.User, input CreateBookInput) (*models.Book, error) {
	if !actor.IsStaff() {
		return nil, apperrors.Forbidden("Permission denied")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Book{}).Where("isbn = ?", input.ISBN).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check isbn: %w", err)
	}
	if count > 0 {
		return nil, apperrors.BadRequest("Book with this ISBN already exists")
	}

	book := &models.Book{
		Title:         input.Title,
		Description:   input.Description,
		ISBN:          input.ISBN,
		Author:        input.Author,
		Genre:         input.Genre,
		PublishedDate: input.PublishedDate,
	}
	if err := s.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.logger.Info("book created", zap.Int64("book_id", book.ID), zap.String("isbn", book.ISBN))
	return book, nil
}

// Get returns one book by ID.
func (s *BookService) Get(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Book")
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

// GetByISBN returns one book by its ISBN.
func (s *BookService) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Book")
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &book, nil
}

// Search runs the layered catalog search behind GET /books.
func (s *BookService) Search(ctx context.Context, p search.SearchParams) (*search.Page, error) {
	page, err := s.engine.Search(ctx, p)
	if err != nil {
		return nil, mapSearchErr(err)
	}
	return page, nil
}

// List pages the catalog with structured filters and optional field-scoped
// keyword matching, skipping the ranked cascade.
func (s *BookService) List(ctx context.Context, p search.ListParams) (*search.Page, error) {
	page, err := s.engine.List(ctx, p)
	if err != nil {
		return nil, mapSearchErr(err)
	}
	return page, nil
}

// Update modifies the set fields of a book. Staff only; a changed ISBN must
// stay unique.
func (s *BookService) Update(ctx context.Context, actor *models.User, id int64, input UpdateBookInput) (*models.Book, error) {
	if !actor.IsStaff() {
		return nil, apperrors.Forbidden("Permission denied")
	}

	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ISBN != nil && *input.ISBN != book.ISBN {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Book{}).Where("isbn = ? AND id <> ?", *input.ISBN, id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check isbn: %w", err)
		}
		if count > 0 {
			return nil, apperrors.BadRequest("Book with this ISBN already exists")
		}
		book.ISBN = *input.ISBN
	}
	if input.Title != nil {
		book.Title = *input.Title
	}
	if input.Description != nil {
		book.Description = *input.Description
	}
	if input.Author != nil {
		book.Author = *input.Author
	}
	if input.Genre != nil {
		book.Genre = *input.Genre
	}
	if input.PublishedDate != nil {
		book.PublishedDate = *input.PublishedDate
	}

	if err := s.db.WithContext(ctx).Save(book).Error; err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return book, nil
}

// Delete removes a book and, through FK cascade, its loans and reviews.
// Staff only.
func (s *BookService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if !actor.IsStaff() {
		return apperrors.Forbidden("Permission denied")
	}

	res := s.db.WithContext(ctx).Delete(&models.Book{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("Book")
	}

	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}
