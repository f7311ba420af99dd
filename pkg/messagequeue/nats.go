package messagequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSService implements the MessageQueue interface on core NATS subjects.
type NATSService struct {
	conn *nats.Conn
}

// NewNATSService connects to the NATS server at url.
func NewNATSService(url, clientName string) (*NATSService, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSService{conn: conn}, nil
}

// Publish sends body on subject topic.
func (s *NATSService) Publish(ctx context.Context, topic string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.Publish(topic, body); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", topic, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (s *NATSService) Close() error {
	return s.conn.Drain()
}
