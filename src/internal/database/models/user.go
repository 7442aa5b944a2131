package models

import (
	"time"
)

// Role names are fixed at migration time.
const (
	RoleAdmin     = "Admin"
	RoleLibrarian = "Librarian"
	RoleMember    = "Member"
)

// Role is a named permission level referenced by users.
type Role struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

// User represents a library account.
type User struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name           string    `gorm:"size:100;not null" json:"name"`
	HashedPassword string    `gorm:"size:255;not null" json:"-"`
	RoleID         int64     `gorm:"not null" json:"role_id"`
	Role           *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	TOTPSecret     string    `gorm:"size:64" json:"-"`
	TOTPEnabled    bool      `gorm:"default:false" json:"totp_enabled"`
	CreatedAt      time.Time `json:"created_at"`

	Borrowings []Borrowing `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reviews    []Review    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// HasRole reports whether the user's loaded role matches any of the names.
func (u *User) HasRole(names ...string) bool {
	if u.Role == nil {
		return false
	}
	for _, name := range names {
		if u.Role.Name == name {
			return true
		}
	}
	return false
}

// IsStaff reports whether the user is a librarian or an admin.
func (u *User) IsStaff() bool {
	return u.HasRole(RoleAdmin, RoleLibrarian)
}
