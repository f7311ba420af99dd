// Package alerting posts operator alerts.
package alerting

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
)

// SlackAlerter posts alerts to a Slack channel.
type SlackAlerter struct {
	client    *slack.Client
	channelID string
}

var _ core.Alerter = (*SlackAlerter)(nil)

// NewSlackAlerter creates a SlackAlerter for the bot token. Extra options are passed to the client.
func NewSlackAlerter(token, channelID string, opts ...slack.Option) *SlackAlerter {
	return &SlackAlerter{client: slack.New(token, opts...), channelID: channelID}
}

func (s *SlackAlerter) Alert(ctx context.Context, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("%w: post message to Slack: %v", core.ErrDependency, err)
	}
	return nil
}

// LogAlerter writes alerts to the log. Used when Slack is not configured.
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (l *LogAlerter) Alert(_ context.Context, message string) error {
	l.logger.Error("alert", zap.String("message", message))
	return nil
}
