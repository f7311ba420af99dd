package notify

import (
	"context"

	"go.uber.org/zap"
)

// Email is a rendered message ready for delivery.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers rendered emails.
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender writes emails to the log instead of delivering them. Used in development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("email (not delivered)",
		zap.String("to", email.To),
		zap.String("from", email.From),
		zap.String("subject", email.Subject),
		zap.String("text", email.Text),
	)
	return nil
}
