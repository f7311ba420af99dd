// Package notify renders and delivers the emails and push notifications sent by the services.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
)

// Options configures a Notifier.
type Options struct {
	From         string
	DashboardURL string
	// Timeout bounds every provider call.
	Timeout time.Duration
}

// Notifier implements core.Notifier on top of an EmailSender and an optional Pusher.
type Notifier struct {
	email  EmailSender
	push   Pusher
	opts   Options
	logger *zap.Logger
}

// New creates a Notifier. push may be nil, in which case push notifications are skipped.
func New(email EmailSender, push Pusher, opts Options, logger *zap.Logger) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Notifier{email: email, push: push, opts: opts, logger: logger}
}

var _ core.Notifier = (*Notifier)(nil)

// SendEmail renders kind with data and delivers it to to.
// Provider failures and timeouts are reported as core.ErrDependency.
func (n *Notifier) SendEmail(ctx context.Context, to string, kind core.EmailKind, data map[string]interface{}) error {
	if to == "" {
		return fmt.Errorf("%w: recipient is required", core.ErrValidation)
	}
	payload := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	if _, ok := payload["dashboardUrl"]; !ok && n.opts.DashboardURL != "" {
		payload["dashboardUrl"] = n.opts.DashboardURL
	}
	if _, ok := payload["name"]; !ok {
		payload["name"] = to
	}

	subject, html, text, err := Render(kind, payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()
	start := time.Now()
	err = n.email.Send(ctx, Email{From: n.opts.From, To: to, Subject: subject, HTML: html, Text: text})
	if err != nil {
		return dependencyError("email", err)
	}
	n.logger.Debug("email sent", zap.String("kind", string(kind)), zap.String("to", to), zap.Duration("took", time.Since(start)))
	return nil
}

// SendPush delivers a push notification. It is a no-op when push is disabled.
func (n *Notifier) SendPush(ctx context.Context, token, title, body string, data map[string]string) error {
	if n.push == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
	defer cancel()
	if err := n.push.Push(ctx, token, title, body, data); err != nil {
		return dependencyError("push", err)
	}
	return nil
}

func dependencyError(channel string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s provider timed out: %v", core.ErrDependency, channel, err)
	}
	return fmt.Errorf("%w: %s provider: %v", core.ErrDependency, channel, err)
}
