package messagequeue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisService implements the MessageQueue interface with Redis pub/sub.
type RedisService struct {
	client *redis.Client
}

// NewRedisService publishes through an existing client. Close leaves the client open.
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Publish sends body on channel topic.
func (s *RedisService) Publish(ctx context.Context, topic string, body []byte) error {
	if err := s.client.Publish(ctx, topic, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", topic, err)
	}
	return nil
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisService) Close() error {
	return nil
}
