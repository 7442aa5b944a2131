package models

import (
	"time"
)

// RagDocument tracks a PDF uploaded to the external document service. Chunk
// storage and embeddings live in that service; this row only records
// ownership and the chunk count reported back.
type RagDocument struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	ChunkCount int       `gorm:"default:0" json:"chunk_count"`
	UserID     int64     `gorm:"not null;index" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
