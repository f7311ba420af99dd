// Package events publishes domain events as JSON envelopes on a message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/pkg/messagequeue"
)

// Envelope is the wire format of every published event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Source     string      `json:"source"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Publisher implements core.EventPublisher on top of a message queue.
type Publisher struct {
	queue  messagequeue.MessageQueue
	topic  string
	source string
	now    func() time.Time
	logger *zap.Logger
}

var _ core.EventPublisher = (*Publisher)(nil)

// NewPublisher publishes every event on topic through queue.
func NewPublisher(queue messagequeue.MessageQueue, topic, source string, logger *zap.Logger) *Publisher {
	return &Publisher{
		queue:  queue,
		topic:  topic,
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		Source:     p.source,
		OccurredAt: p.now(),
		Payload:    payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	if err := p.queue.Publish(ctx, p.topic, body); err != nil {
		return fmt.Errorf("%w: publish %s event: %v", core.ErrDependency, eventType, err)
	}
	p.logger.Debug("event published", zap.String("type", eventType), zap.String("id", env.ID))
	return nil
}

// Close releases the underlying queue.
func (p *Publisher) Close() error {
	return p.queue.Close()
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }

func (Noop) Close() error { return nil }
