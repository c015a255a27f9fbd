package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendExpirationNotice warns a cardholder that a physical card is about to expire.
// Only the last four digits of the card number leave the service.
func (s *Sender) SendExpirationNotice(to, fullName, lastFour string, expiresAt time.Time) error {
	e := buildExpirationNotice(s.cfg.SenderEmail, to, fullName, lastFour, expiresAt)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send expiration notice to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

func buildExpirationNotice(from, to, fullName, lastFour string, expiresAt time.Time) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{to}
	e.Subject = "Your expense card is about to expire"

	body := fmt.Sprintf("Dear %s,\n\n", fullName)
	body += fmt.Sprintf(
		"Your card ending in %s expires on %s.\n"+
			"Please request a replacement card before that date to keep using it.\n",
		lastFour, expiresAt.Format("2006-01-02"),
	)
	body += "\nBest regards,\nCard Service"
	e.Text = []byte(body)
	return e
}
