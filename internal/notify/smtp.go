package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender delivers email through an authenticated SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTPSender for host:port.
func NewSMTPSender(host, port, username, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, username: username, password: password, sendMail: smtp.SendMail}
}

// Send builds a multipart/alternative message and hands it to the relay.
// net/smtp has no context support, so a cancelled ctx abandons the in-flight dial.
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return errors.New("recipient email address cannot be empty")
	}
	if email.From == "" {
		return errors.New("sender email address cannot be empty")
	}
	if email.Subject == "" {
		return errors.New("email subject cannot be empty")
	}

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := net.JoinHostPort(s.host, s.port)
	msg := buildMIME(email)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, email.From, []string{email.To}, msg)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const mimeBoundary = "coachhub-alt-boundary"

func buildMIME(email Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", email.To)
	fmt.Fprintf(&b, "From: %s\r\n", email.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", mimeBoundary, email.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", mimeBoundary, email.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)
	return []byte(b.String())
}
