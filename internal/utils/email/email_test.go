package email

import (
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(send func(e *email.Email, addr string, auth smtp.Auth) error) *Sender {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewSender(&config.Config{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    "2525",
		SenderEmail: "cards@example.com",
	}, logger)
	s.send = send
	return s
}

func TestSendExpirationNotice(t *testing.T) {
	var sent *email.Email
	var gotAddr string
	s := newTestSender(func(e *email.Email, addr string, _ smtp.Auth) error {
		sent, gotAddr = e, addr
		return nil
	})

	expires := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SendExpirationNotice("ana@example.com", "Ana Souza", "4242", expires))

	require.NotNil(t, sent)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "cards@example.com", sent.From)
	assert.Equal(t, []string{"ana@example.com"}, sent.To)
	body := string(sent.Text)
	assert.Contains(t, body, "Dear Ana Souza")
	assert.Contains(t, body, "ending in 4242")
	assert.Contains(t, body, "2030-03-01")
}

func TestSendExpirationNotice_Failure(t *testing.T) {
	s := newTestSender(func(*email.Email, string, smtp.Auth) error {
		return errors.New("connection refused")
	})

	err := s.SendExpirationNotice("ana@example.com", "Ana Souza", "4242", time.Now())
	assert.ErrorContains(t, err, "connection refused")
}
