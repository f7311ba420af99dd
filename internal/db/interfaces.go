package db

import (
	"context"
	"errors"
	"time"

	"github.com/coachhub/coachhub-api/internal/models"
)

// ErrNotFound is returned by repositories when a document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrStale is returned by conditional writes when the document changed since it was read.
var ErrStale = errors.New("document changed since it was read")

// ProfileRepository reads the admins, employees and users collections.
type ProfileRepository interface {
	// FindByID looks the id up in admins, employees and users, in that order.
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Profile, error)
	ListUsersByEmployee(ctx context.Context, employeeID string) ([]*models.Profile, error)
	SetEmployeeActive(ctx context.Context, employeeID string, active bool, at time.Time) error
	// DeactivateEmployeesByEmail flags every employee with this email as expired and returns how many matched.
	DeactivateEmployeesByEmail(ctx context.Context, email string, at time.Time) (int, error)
}

// SubscriptionRepository stores subscription documents.
type SubscriptionRepository interface {
	FindByEmployeeID(ctx context.Context, employeeID string) (*models.Subscription, error)
	FindByEmployeeEmail(ctx context.Context, email string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) (string, error)
	Update(ctx context.Context, sub *models.Subscription) error
	// MarkReminderSent sets reminderSent on a live subscription whose expirationDate still equals expected.
	// It returns ErrStale otherwise and writes nothing.
	MarkReminderSent(ctx context.Context, id string, expected, at time.Time) error
	// MarkExpired moves a live subscription whose expirationDate still equals expected to expired.
	// It returns ErrStale otherwise and writes nothing.
	MarkExpired(ctx context.Context, id string, expected, at time.Time) error
	// ListLive returns every subscription with status active and isActive true.
	ListLive(ctx context.Context) ([]*models.Subscription, error)
}

// PaymentRepository stores immutable payment receipts.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) (string, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*models.Payment, error)
}

// ChatRepository stores chats, their messages and the flat message backup.
type ChatRepository interface {
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	CreateChat(ctx context.Context, chat *models.Chat) error
	// ApplyMessage upserts the chat: lastMessage and lastActivity are overwritten,
	// unread[sender] becomes 0 and unread[recipient] grows by one, in a single write.
	ApplyMessage(ctx context.Context, chatID string, participants []string, last models.LastMessage, senderID, recipientID string) error
	ListChatsForUser(ctx context.Context, userID string) ([]*models.Chat, error)

	CreateMessage(ctx context.Context, msg *models.Message) error
	MirrorMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, chatID, messageID string) (*models.Message, error)
	// ListMessages returns up to limit messages oldest first.
	ListMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error)
	ListMirroredMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error)
	// MarkRead flags the given messages read at the given instant and zeroes the reader's unread counter in one batch.
	MarkRead(ctx context.Context, chatID, readerID string, messageIDs []string, at time.Time) error
	UpdateReactions(ctx context.Context, chatID, messageID string, reactions map[string][]string) error
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (string, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}
