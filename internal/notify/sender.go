// Package notify provides the outbound email senders used by the worker.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// ErrNoRecipient is returned when Send is called without an address.
var ErrNoRecipient = errors.New("notify: recipient is required")

// SMTPSender delivers HTML email through an SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Now      func() time.Time

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ common.EmailSender = (*SMTPSender)(nil)

// Send implements common.EmailSender.
func (s *SMTPSender) Send(to, subject, html string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if s.Host == "" || s.From == "" {
		return errors.New("notify: smtp host and sender are required")
	}
	port := s.Port
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}
	msg := s.message(to, subject, html)
	if err := send(net.JoinHostPort(s.Host, strconv.Itoa(port)), auth, s.From, []string{to}, msg); err != nil {
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject, html string) []byte {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", s.From)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Host))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(html, "\n", "\r\n"))
	return b.Bytes()
}

// LogSender writes emails to the logger instead of delivering them. It is
// the default outside production.
type LogSender struct {
	Logger zerolog.Logger
}

// Send implements common.EmailSender.
func (l LogSender) Send(to, subject, html string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}
	l.Logger.Info().Str("to", to).Str("subject", subject).Int("bytes", len(html)).Msg("email suppressed")
	return nil
}

// Config selects a sender.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

// NewSender returns an SMTP sender when a host is configured and a log
// sender otherwise.
func NewSender(cfg Config, logger zerolog.Logger) common.EmailSender {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return LogSender{Logger: logger}
	}
	return &SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
	}
}
