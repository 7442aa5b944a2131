package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

const (
	maxAttempts  = 3
	drainBatch   = 25
	maxErrorSize = 500
)

// NoticeService queues notices and drains the pending queue.
type NoticeService struct {
	db     *gorm.DB
	sender Sender
	logger *zap.Logger
}

func NewNoticeService(db *gorm.DB, sender Sender, logger *zap.Logger) *NoticeService {
	return &NoticeService{db: db, sender: sender, logger: logger}
}

// QueueWelcome records a welcome notice for a new account. With the mailer
// disabled this is a no-op, so registration never depends on SMTP config.
func (s *NoticeService) QueueWelcome(ctx context.Context, user *models.User) error {
	if !s.sender.Enabled() {
		return nil
	}
	data := struct{ Name string }{Name: user.Name}
	return s.queue(ctx, models.EmailKindWelcome, user.Email, user.Name, data)
}

// QueueOverdueReminder records a reminder for one overdue loan. The
// borrowing must carry its User and Book.
func (s *NoticeService) QueueOverdueReminder(ctx context.Context, borrowing *models.Borrowing) error {
	if !s.sender.Enabled() {
		return nil
	}
	if borrowing.User == nil || borrowing.Book == nil {
		return fmt.Errorf("borrowing %d is missing its user or book", borrowing.ID)
	}
	data := struct {
		Name    string
		Title   string
		DueDate string
	}{
		Name:    borrowing.User.Name,
		Title:   borrowing.Book.Title,
		DueDate: borrowing.DueDate.Format("January 2, 2006"),
	}
	return s.queue(ctx, models.EmailKindOverdueReminder, borrowing.User.Email, borrowing.User.Name, data)
}

func (s *NoticeService) queue(ctx context.Context, kind, toEmail, toName string, data any) error {
	subject, body, err := renderNotice(kind, data)
	if err != nil {
		return err
	}

	notice := models.EmailNotice{
		ToEmail:  toEmail,
		ToName:   toName,
		Subject:  subject,
		BodyText: body,
		Kind:     kind,
		Status:   models.EmailStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&notice).Error; err != nil {
		return fmt.Errorf("failed to queue %s notice: %w", kind, err)
	}

	s.logger.Debug("notice queued", zap.String("kind", kind), zap.String("to", toEmail))
	return nil
}

// ProcessPending drains up to one batch of pending notices and reports how
// many went out. A notice that keeps failing is marked failed once its
// attempts reach the cap; until then it stays pending and is retried on
// the next drain.
func (s *NoticeService) ProcessPending(ctx context.Context) (int, error) {
	if !s.sender.Enabled() {
		return 0, nil
	}

	var notices []models.EmailNotice
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.EmailStatusPending).
		Order("created_at ASC").
		Limit(drainBatch).
		Find(&notices).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch pending notices: %w", err)
	}

	sent := 0
	for i := range notices {
		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		default:
		}
		if s.deliver(ctx, &notices[i]) {
			sent++
		}
	}
	return sent, nil
}

func (s *NoticeService) deliver(ctx context.Context, notice *models.EmailNotice) bool {
	notice.Attempts++

	if err := s.sender.Send(notice); err != nil {
		msg := err.Error()
		if len(msg) > maxErrorSize {
			msg = msg[:maxErrorSize]
		}
		notice.LastError = msg
		if notice.Attempts >= maxAttempts {
			notice.Status = models.EmailStatusFailed
		}
		s.logger.Warn("notice delivery failed",
			zap.String("id", notice.ID.String()),
			zap.String("kind", notice.Kind),
			zap.Int("attempts", notice.Attempts),
			zap.Error(err))
		if saveErr := s.db.WithContext(ctx).Save(notice).Error; saveErr != nil {
			s.logger.Error("failed to record delivery failure", zap.Error(saveErr))
		}
		return false
	}

	now := time.Now().UTC()
	notice.Status = models.EmailStatusSent
	notice.SentAt = &now
	notice.LastError = ""
	if err := s.db.WithContext(ctx).Save(notice).Error; err != nil {
		s.logger.Error("failed to mark notice sent", zap.Error(err))
		return false
	}
	return true
}
