// Package messagequeue provides the broker transports domain events are published on.
package messagequeue

import "context"

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Close() error
}
