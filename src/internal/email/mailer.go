// Package email queues outbound notices in the database and delivers them
// over SMTP. Queueing is cheap enough to call inline from request handlers;
// delivery happens in the background processor or the notify-overdue
// command.
package email

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/gomail.v2"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// ErrDisabled is returned by Send when email.enabled is off.
var ErrDisabled = errors.New("email sending is disabled")

// Sender delivers a single notice. *Mailer is the production
// implementation; tests substitute their own.
type Sender interface {
	Enabled() bool
	Send(notice *models.EmailNotice) error
}

// Mailer sends notices over SMTP using the email.* config keys.
type Mailer struct {
	cfg    *viper.Viper
	dialer *gomail.Dialer
}

// NewMailer builds a mailer. With email.enabled off the dialer stays nil
// and Send refuses to deliver.
func NewMailer(cfg *viper.Viper) *Mailer {
	var dialer *gomail.Dialer

	if cfg.GetBool("email.enabled") {
		host := cfg.GetString("email.smtp.host")
		dialer = gomail.NewDialer(
			host,
			cfg.GetInt("email.smtp.port"),
			cfg.GetString("email.smtp.username"),
			cfg.GetString("email.smtp.password"),
		)
		if cfg.GetBool("email.smtp.use_tls") {
			dialer.TLSConfig = &tls.Config{
				ServerName:         host,
				InsecureSkipVerify: cfg.GetBool("email.smtp.skip_verify"),
			}
		}
	}

	return &Mailer{cfg: cfg, dialer: dialer}
}

// Enabled reports whether delivery is configured.
func (m *Mailer) Enabled() bool {
	return m.dialer != nil
}

// Send delivers one notice. The From header comes from config, not the
// notice, so queued rows cannot spoof the sender.
func (m *Mailer) Send(notice *models.EmailNotice) error {
	if m.dialer == nil {
		return ErrDisabled
	}

	message := gomail.NewMessage()
	message.SetHeader("From", formatAddress(
		m.cfg.GetString("email.from.address"),
		m.cfg.GetString("email.from.name")))
	message.SetHeader("To", formatAddress(notice.ToEmail, notice.ToName))
	message.SetHeader("Subject", notice.Subject)
	message.SetHeader("X-Mailer", "BookHive")
	message.SetBody("text/plain", notice.BodyText)

	if err := m.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func formatAddress(email, name string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
