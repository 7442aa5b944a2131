package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Email notice kinds.
const (
	EmailKindWelcome         = "welcome"
	EmailKindOverdueReminder = "overdue_reminder"
)

// Email notice delivery states.
const (
	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

// EmailNotice is a queued outbound email. Rows are drained by the notice
// processor; failures retry until Attempts reaches the cap.
type EmailNotice struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ToEmail   string     `gorm:"size:255;not null" json:"to_email"`
	ToName    string     `gorm:"size:100" json:"to_name"`
	Subject   string     `gorm:"size:255;not null" json:"subject"`
	BodyText  string     `gorm:"type:text" json:"body_text"`
	Kind      string     `gorm:"size:50;not null;index" json:"kind"`
	Status    string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	LastError string     `gorm:"size:500" json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (n *EmailNotice) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
