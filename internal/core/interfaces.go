package core

import (
	"context"
	"time"

	"github.com/coachhub/coachhub-api/internal/models"
)

// ProfileService resolves accounts to profiles and roles.
type ProfileService interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	RoleOf(ctx context.Context, id string) (models.Role, error)
}

// SubscriptionService is the subscription lifecycle engine.
type SubscriptionService interface {
	Renew(ctx context.Context, actor Actor, req RenewRequest) (*RenewResult, error)
	Create(ctx context.Context, actor Actor, employeeID, planKey, paymentID string) (*RenewResult, error)
	Get(ctx context.Context, actor Actor, employeeID string) (*SubscriptionView, error)
	ListPayments(ctx context.Context, actor Actor, employeeID string) ([]*models.Payment, error)
	Plans() []models.Plan
	// ScanAndNotify runs one expiration scan. It is called by the scheduler.
	ScanAndNotify(ctx context.Context) (*ScanResult, error)
	// TriggerScan runs a scan on behalf of an admin and records it in the audit log.
	TriggerScan(ctx context.Context, actor Actor) (*ScanResult, error)
}

// ChatService is the chat threading model.
type ChatService interface {
	DeriveChatID(ctx context.Context, userA, userB string) string
	SendMessage(ctx context.Context, sender Actor, recipientID, content, msgType string) (*models.Message, error)
	CreateOrGet(ctx context.Context, actor Actor, otherUserID string) (*models.Chat, error)
	GetMessages(ctx context.Context, actor Actor, chatID string) ([]*models.Message, error)
	MarkAsRead(ctx context.Context, actor Actor, chatID string) (int, error)
	ToggleReaction(ctx context.Context, actor Actor, chatID, messageID, emoji string) (map[string][]string, error)
	ListChats(ctx context.Context, actor Actor) ([]ChatSummary, error)
	UnreadTotal(ctx context.Context, actor Actor) (int, error)
	Contacts(ctx context.Context, actor Actor) ([]*models.Profile, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
}

// EmailKind selects the template used for an outgoing email.
type EmailKind string

const (
	EmailSubscriptionReminder EmailKind = "subscription_reminder"
	EmailSubscriptionExpired  EmailKind = "subscription_expired"
	EmailSubscriptionRenewed  EmailKind = "subscription_renewed"
)

// Notifier sends email and push notifications. Implementations bound every call with a timeout
// and report unreachable providers as ErrDependency.
type Notifier interface {
	SendEmail(ctx context.Context, to string, kind EmailKind, data map[string]interface{}) error
	SendPush(ctx context.Context, token, title, body string, data map[string]string) error
}

// EventPublisher publishes domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Domain event types.
const (
	EventSubscriptionRenewed      = "subscription.renewed"
	EventSubscriptionCreated      = "subscription.created"
	EventSubscriptionReminderSent = "subscription.reminder_sent"
	EventSubscriptionExpired      = "subscription.expired"
	EventChatMessageSent          = "chat.message_sent"
)

// Alerter notifies operators about failures nobody is waiting on.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// Clock returns the current instant. Tests inject a fixed one.
type Clock func() time.Time
