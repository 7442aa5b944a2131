package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// VocabSource supplies the live author and genre vocabularies used for
// fuzzy matching. Values are read fresh on every call; the catalog mutates
// under the search path and stale vocabularies would resurrect deleted
// names.
type VocabSource interface {
	Authors(ctx context.Context) ([]string, error)
	Genres(ctx context.Context) ([]string, error)
}

type dbVocab struct {
	db *gorm.DB
}

// NewVocab returns a VocabSource backed by the books table.
func NewVocab(db *gorm.DB) VocabSource {
	return &dbVocab{db: db}
}

func (v *dbVocab) Authors(ctx context.Context) ([]string, error) {
	var authors []string
	err := v.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("author IS NOT NULL AND author <> ''").
		Distinct().
		Pluck("author", &authors).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch author vocabulary: %w", err)
	}
	return authors, nil
}

func (v *dbVocab) Genres(ctx context.Context) ([]string, error) {
	var genres []string
	err := v.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("genre IS NOT NULL AND genre <> ''").
		Distinct().
		Pluck("genre", &genres).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch genre vocabulary: %w", err)
	}
	return genres, nil
}

// FetchVocab loads both vocabularies concurrently.
func FetchVocab(ctx context.Context, src VocabSource) (authors, genres []string, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		authors, e = src.Authors(ctx)
		return e
	})
	g.Go(func() error {
		var e error
		genres, e = src.Genres(ctx)
		return e
	})
	if err = g.Wait(); err != nil {
		return nil, nil, err
	}
	return authors, genres, nil
}
