package models

import (
	"time"
)

// Borrowing is one loan of one book. ReturnedAt is nil while the loan is
// active; (created_at, id) orders the listing cursors.
type Borrowing struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64      `gorm:"not null;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	BookID     int64      `gorm:"not null;index" json:"book_id"`
	Book       *Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
	BorrowedAt time.Time  `gorm:"not null" json:"borrowed_at"`
	DueDate    time.Time  `gorm:"not null" json:"due_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// Active reports whether the book is still out.
func (b *Borrowing) Active() bool {
	return b.ReturnedAt == nil
}

// Overdue reports whether an active loan has passed its due date.
func (b *Borrowing) Overdue(now time.Time) bool {
	return b.Active() && b.DueDate.Before(now)
}
