package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/core"
)

type memoryQueue struct {
	topic  string
	bodies [][]byte
	err    error
	closed bool
}

func (q *memoryQueue) Publish(_ context.Context, topic string, body []byte) error {
	if q.err != nil {
		return q.err
	}
	q.topic = topic
	q.bodies = append(q.bodies, body)
	return nil
}

func (q *memoryQueue) Close() error {
	q.closed = true
	return nil
}

func TestPublisherWritesEnvelope(t *testing.T) {
	q := &memoryQueue{}
	p := NewPublisher(q, "coachhub.events", "coachhub-api", zap.NewNop())
	p.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := p.Publish(context.Background(), core.EventSubscriptionRenewed, map[string]interface{}{"subscriptionId": "s1"})
	require.NoError(t, err)
	require.Len(t, q.bodies, 1)
	assert.Equal(t, "coachhub.events", q.topic)

	var env struct {
		ID         string                 `json:"id"`
		Type       string                 `json:"type"`
		Source     string                 `json:"source"`
		OccurredAt time.Time              `json:"occurredAt"`
		Payload    map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(q.bodies[0], &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, core.EventSubscriptionRenewed, env.Type)
	assert.Equal(t, "coachhub-api", env.Source)
	assert.Equal(t, "s1", env.Payload["subscriptionId"])
	assert.True(t, env.OccurredAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	require.NoError(t, p.Close())
	assert.True(t, q.closed)
}

func TestPublisherReportsBrokerFailure(t *testing.T) {
	p := NewPublisher(&memoryQueue{err: errors.New("connection reset")}, "t", "s", zap.NewNop())
	err := p.Publish(context.Background(), core.EventChatMessageSent, nil)
	assert.ErrorIs(t, err, core.ErrDependency)

	err = p.Publish(context.Background(), "bad", map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
