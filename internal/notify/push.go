package notify

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// Pusher delivers push notifications to a device token.
type Pusher interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

// fcmAPI is the part of the FCM client the pusher uses.
type fcmAPI interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMPusher sends push notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client fcmAPI
}

// NewFCMPusher wraps a Firebase messaging client.
func NewFCMPusher(client *messaging.Client) *FCMPusher {
	return &FCMPusher{client: client}
}

func (p *FCMPusher) Push(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		return errors.New("device token cannot be empty")
	}
	_, err := p.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
