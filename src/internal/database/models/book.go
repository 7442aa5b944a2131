package models

import (
	"time"
)

// Book is a catalog entry. The postgres-only search_vector column and the
// trigram indexes are managed by SQL migrations, not by GORM; every field
// here must stay in sync with the column allowlist used by the search layer.
type Book struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string    `gorm:"size:255;not null;index" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	ISBN          string    `gorm:"size:20;uniqueIndex;not null" json:"isbn"`
	Author        string    `gorm:"size:255;not null;index" json:"author"`
	Genre         string    `gorm:"size:100" json:"genre"`
	PublishedDate time.Time `gorm:"type:date" json:"published_date"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`

	Borrowings []Borrowing `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reviews    []Review    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
