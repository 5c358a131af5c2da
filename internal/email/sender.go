package email

import (
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("smtp not configured")

// Message is a single outbound HTML email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a rendered message
type Sender interface {
	Send(msg *Message) error
}

// SMTPSender delivers mail through a gomail dialer
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	// name of the first missing setting, empty when complete
	missing string
}

// NewSMTPSender builds a sender. Missing host or credentials are reported by
// Send, so a deployment without SMTP still registers and reviews accounts.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	s := &SMTPSender{from: from}
	switch {
	case host == "":
		s.missing = "SMTP_HOST"
	case user == "":
		s.missing = "SMTP_USER"
	case password == "":
		s.missing = "SMTP_PASS"
	default:
		s.dialer = gomail.NewDialer(host, port, user, password)
	}
	if s.from == "" {
		s.from = user
	}
	return s
}

func (s *SMTPSender) Send(message *Message) error {
	if s.missing != "" {
		return fmt.Errorf("%w: %s is empty", ErrNotConfigured, s.missing)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", message.To)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/html", message.Body)

	return s.dialer.DialAndSend(msg)
}
