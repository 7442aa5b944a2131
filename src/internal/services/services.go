// Package services implements the library's business rules on top of the
// storage layer: catalog management, accounts, loans, reviews, statistics
// and the AI-assisted discovery operations. Services enforce ownership and
// role rules themselves so they stay safe regardless of route wiring, and
// report expected failures as typed errors from the errors package.
package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
)

// mapSearchErr converts search-layer sentinels into client errors.
func mapSearchErr(err error) error {
	if errors.Is(err, search.ErrInvalidCursor) {
		return apperrors.BadRequest("Invalid cursor format")
	}
	return err
}

// cursorScope narrows a newest-first listing to rows strictly older than
// the compound cursor position.
func cursorScope(q *gorm.DB, cursor string) (*gorm.DB, error) {
	if cursor == "" {
		return q, nil
	}
	createdAt, id, err := search.DecodeCompoundCursor(cursor)
	if err != nil {
		return nil, apperrors.BadRequest("Invalid cursor format")
	}
	return q.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id), nil
}
