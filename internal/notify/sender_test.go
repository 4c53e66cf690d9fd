package notify

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	s := &SMTPSender{
		Host:     "smtp.example.com",
		Username: "mailer",
		Password: "secret",
		From:     "orders@parfum.example",
		Now:      func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
		send: func(addr string, a smtp.Auth, _ string, to []string, msg []byte) error {
			gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
			return nil
		},
	}

	require.NoError(t, s.Send(" asha@example.com ", "Order confirmed: invoice INV-000001", "<p>hi</p>\n"))
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.NotNil(t, gotAuth)
	require.Equal(t, []string{"asha@example.com"}, gotTo)
	require.Contains(t, gotMsg, "To: asha@example.com\r\n")
	require.Contains(t, gotMsg, "Subject: Order confirmed: invoice INV-000001\r\n")
	require.Contains(t, gotMsg, "Content-Type: text/html; charset=\"utf-8\"\r\n")
	require.Contains(t, gotMsg, "Date: Sun, 01 Mar 2026 10:00:00 +0000\r\n")
	require.True(t, strings.HasSuffix(gotMsg, "\r\n\r\n<p>hi</p>\r\n"))
}

func TestSMTPSenderEncodesNonASCIISubject(t *testing.T) {
	var gotMsg string
	s := &SMTPSender{Host: "localhost", Port: 25, From: "a@b.c",
		send: func(_ string, a smtp.Auth, _ string, _ []string, msg []byte) error {
			require.Nil(t, a)
			gotMsg = string(msg)
			return nil
		}}
	require.NoError(t, s.Send("x@y.z", "Total ₹1,180.00", "body"))
	require.Contains(t, gotMsg, "Subject: =?utf-8?q?")
}

func TestSMTPSenderErrors(t *testing.T) {
	s := &SMTPSender{Host: "localhost", From: "a@b.c", send: func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("421 busy")
	}}
	require.ErrorIs(t, s.Send("", "s", "b"), ErrNoRecipient)
	require.ErrorContains(t, s.Send("x@y.z", "s", "b"), "421 busy")
	require.Error(t, (&SMTPSender{}).Send("x@y.z", "s", "b"))
}

func TestNewSenderSelectsImplementation(t *testing.T) {
	_, ok := NewSender(Config{}, zerolog.Nop()).(LogSender)
	require.True(t, ok)

	s, ok := NewSender(Config{SMTPHost: "smtp.example.com", From: "a@b.c"}, zerolog.Nop()).(*SMTPSender)
	require.True(t, ok)
	require.Equal(t, "smtp.example.com", s.Host)

	require.ErrorIs(t, LogSender{Logger: zerolog.Nop()}.Send(" ", "s", "b"), ErrNoRecipient)
}
