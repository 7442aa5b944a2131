package models

import (
	"time"
)

// Review is a member's rating of a book they have borrowed. One per
// (user, book) pair.
type Review struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_reviews_user_book" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BookID    int64     `gorm:"not null;uniqueIndex:idx_reviews_user_book" json:"book_id"`
	Book      *Book     `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
