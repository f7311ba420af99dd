package core

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/models"
	"github.com/coachhub/coachhub-api/internal/observability"
)

const (
	messagePageSize    = 100
	previewMaxRunes    = 100
	maxMessageRunes    = 5000
	defaultMessageType = "text"
)

var messageTypes = map[string]struct{}{"text": {}, "image": {}, "file": {}}

// ChatSummary is one entry of a participant's conversation list.
type ChatSummary struct {
	Chat *models.Chat
	// Other is the other participant, nil when their profile cannot be loaded.
	Other  *models.Profile
	Unread int
}

// ChatDeps are the collaborators of the chat service.
type ChatDeps struct {
	Chats         db.ChatRepository
	Notifications db.NotificationRepository
	Profiles      db.ProfileRepository
	Notifier      Notifier
	Events        EventPublisher
	Clock         Clock
	Logger        *zap.Logger
}

type chatService struct {
	chats         db.ChatRepository
	notifications db.NotificationRepository
	directory     db.ProfileRepository
	profiles      ProfileService
	notifier      Notifier
	events        EventPublisher
	now           Clock
	sanitizer     *bluemonday.Policy
	logger        *zap.Logger
	tracer        trace.Tracer
}

// NewChatService creates a ChatService instance.
func NewChatService(deps ChatDeps) ChatService {
	s := &chatService{
		chats:         deps.Chats,
		notifications: deps.Notifications,
		directory:     deps.Profiles,
		profiles:      NewProfileService(deps.Profiles),
		notifier:      deps.Notifier,
		events:        deps.Events,
		now:           deps.Clock,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        deps.Logger,
		tracer:        otel.Tracer("github.com/coachhub/coachhub-api/internal/core/chat"),
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SendMessage stores a message from sender to recipientID and bumps the recipient's unread counter.
func (s *chatService) SendMessage(ctx context.Context, sender Actor, recipientID, content, msgType string) (*models.Message, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if recipientID == sender.ID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	if msgType == "" {
		msgType = defaultMessageType
	}
	if _, ok := messageTypes[msgType]; !ok {
		return nil, fmt.Errorf("%w: unsupported message type %q", ErrValidation, msgType)
	}
	clean, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	recipient, err := s.profiles.GetProfile(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if err := CanSend(sender, recipient); err != nil {
		return nil, err
	}

	chatID := ComposeChatID(sender.ID, sender.Role, recipient.ID, recipient.Role)
	ctx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("chat.id", chatID),
		attribute.String("chat.sender_role", string(sender.Role)),
	))
	defer span.End()

	now := s.now()
	msg := &models.Message{
		ID:          newMessageID(now),
		ChatID:      chatID,
		SenderID:    sender.ID,
		SenderRole:  sender.Role,
		RecipientID: recipient.ID,
		Content:     clean,
		Type:        msgType,
		CreatedAt:   now,
	}
	if err := s.storeMessage(ctx, msg); err != nil {
		span.RecordError(err)
		return nil, err
	}

	last := models.LastMessage{Content: clean, SenderID: sender.ID, Timestamp: now}
	if err := s.chats.ApplyMessage(ctx, chatID, sortedPair(sender.ID, recipient.ID), last, sender.ID, recipient.ID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update chat '%s': %w", chatID, err)
	}

	observability.ChatMessages().WithLabelValues(string(sender.Role)).Inc()
	s.notifyRecipient(ctx, sender, recipient, msg)
	if s.events != nil {
		if err := s.events.Publish(ctx, EventChatMessageSent, map[string]interface{}{
			"chatId":      chatID,
			"messageId":   msg.ID,
			"senderId":    sender.ID,
			"recipientId": recipient.ID,
		}); err != nil {
			observability.BestEffortFailures().WithLabelValues("event").Inc()
			s.logger.Warn("failed to publish event", zap.String("event", EventChatMessageSent), zap.Error(err))
		}
	}
	return msg, nil
}

// CreateOrGet returns the chat between actor and otherUserID, creating an empty one if needed.
func (s *chatService) CreateOrGet(ctx context.Context, actor Actor, otherUserID string) (*models.Chat, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return nil, fmt.Errorf("%w: other user id is required", ErrValidation)
	}
	if otherUserID == actor.ID {
		return nil, fmt.Errorf("%w: cannot open a chat with yourself", ErrValidation)
	}
	other, err := s.profiles.GetProfile(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if err := CanOpen(actor, other); err != nil {
		return nil, err
	}

	chatID := ComposeChatID(actor.ID, actor.Role, other.ID, other.Role)
	chat, err := s.chats.GetChat(ctx, chatID)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get chat '%s': %w", chatID, err)
	}

	now := s.now()
	chat = &models.Chat{
		ID:           chatID,
		Participants: sortedPair(actor.ID, other.ID),
		UnreadCount:  map[string]int{actor.ID: 0, other.ID: 0},
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// GetMessages returns up to one page of messages oldest first and marks the ones
// addressed to actor as read. Read-marking failures are logged, not returned.
func (s *chatService) GetMessages(ctx context.Context, actor Actor, chatID string) ([]*models.Message, error) {
	chat, err := s.participantChat(ctx, actor, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.listMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if _, err := s.markRead(ctx, chat, actor.ID, msgs); err != nil {
		observability.BestEffortFailures().WithLabelValues("mark_read").Inc()
		s.logger.Warn("failed to mark messages read", zap.String("chatId", chatID), zap.String("readerId", actor.ID), zap.Error(err))
	}
	return msgs, nil
}

// MarkAsRead marks every unread message addressed to actor as read and returns how many changed.
func (s *chatService) MarkAsRead(ctx context.Context, actor Actor, chatID string) (int, error) {
	chat, err := s.participantChat(ctx, actor, chatID)
	if err != nil {
		return 0, err
	}
	msgs, err := s.listMessages(ctx, chatID)
	if err != nil {
		return 0, err
	}
	return s.markRead(ctx, chat, actor.ID, msgs)
}

// ToggleReaction adds or removes actor's emoji on a message and returns the resulting reactions.
func (s *chatService) ToggleReaction(ctx context.Context, actor Actor, chatID, messageID, emoji string) (map[string][]string, error) {
	if err := validateReaction(emoji); err != nil {
		return nil, err
	}
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrValidation)
	}
	if _, err := s.participantChat(ctx, actor, chatID); err != nil {
		return nil, err
	}

	msg, err := s.chats.GetMessage(ctx, chatID, messageID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: message '%s'", ErrNotFound, messageID)
		}
		return nil, fmt.Errorf("failed to get message '%s': %w", messageID, err)
	}

	reactions := toggleReaction(msg.Reactions, actor.ID, emoji)
	if err := s.chats.UpdateReactions(ctx, chatID, messageID, reactions); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: message '%s'", ErrNotFound, messageID)
		}
		return nil, err
	}
	msg.Reactions = reactions
	s.mirror(ctx, msg)
	return reactions, nil
}

// ListChats returns actor's chats, most recently active first.
func (s *chatService) ListChats(ctx context.Context, actor Actor) ([]ChatSummary, error) {
	chats, err := s.chats.ListChatsForUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats for '%s': %w", actor.ID, err)
	}
	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := ChatSummary{Chat: chat, Unread: chat.UnreadCount[actor.ID]}
		for _, p := range chat.Participants {
			if p == actor.ID {
				continue
			}
			if other, err := s.profiles.GetProfile(ctx, p); err == nil {
				summary.Other = other
			} else {
				s.logger.Debug("chat participant profile unavailable", zap.String("chatId", chat.ID), zap.String("userId", p), zap.Error(err))
			}
		}
		summaries = append(summaries, summary)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Chat.LastActivity.After(summaries[j].Chat.LastActivity)
	})
	return summaries, nil
}

// UnreadTotal sums actor's unread counters across all chats.
func (s *chatService) UnreadTotal(ctx context.Context, actor Actor) (int, error) {
	chats, err := s.chats.ListChatsForUser(ctx, actor.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list chats for '%s': %w", actor.ID, err)
	}
	total := 0
	for _, chat := range chats {
		total += chat.UnreadCount[actor.ID]
	}
	return total, nil
}

// Contacts lists the profiles actor may open a chat with.
func (s *chatService) Contacts(ctx context.Context, actor Actor) ([]*models.Profile, error) {
	var (
		contacts []*models.Profile
		err      error
	)
	switch actor.Role {
	case models.RoleAdmin:
		contacts, err = s.collect(
			func() ([]*models.Profile, error) { return s.directory.ListByRole(ctx, models.RoleEmployee) },
			func() ([]*models.Profile, error) { return s.directory.ListByRole(ctx, models.RoleUser) },
		)
	case models.RoleEmployee:
		contacts, err = s.collect(
			func() ([]*models.Profile, error) { return s.directory.ListByRole(ctx, models.RoleAdmin) },
			func() ([]*models.Profile, error) { return s.directory.ListUsersByEmployee(ctx, actor.ID) },
		)
	case models.RoleUser:
		if actor.AssignedEmployeeID == "" {
			return []*models.Profile{}, nil
		}
		coach, gerr := s.profiles.GetProfile(ctx, actor.AssignedEmployeeID)
		if gerr != nil {
			if errors.Is(gerr, ErrNotFound) {
				return []*models.Profile{}, nil
			}
			return nil, gerr
		}
		contacts = []*models.Profile{coach}
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrForbidden, actor.Role)
	}
	if err != nil {
		return nil, err
	}

	eligible := make([]*models.Profile, 0, len(contacts))
	for _, p := range contacts {
		if p.ID != actor.ID && CanOpen(actor, p) == nil {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

func (s *chatService) collect(sources ...func() ([]*models.Profile, error)) ([]*models.Profile, error) {
	var out []*models.Profile
	for _, src := range sources {
		profiles, err := src()
		if err != nil {
			return nil, fmt.Errorf("failed to list contacts: %w", err)
		}
		out = append(out, profiles...)
	}
	return out, nil
}

// participantChat loads the chat and checks that actor takes part in it.
func (s *chatService) participantChat(ctx context.Context, actor Actor, chatID string) (*models.Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat id is required", ErrValidation)
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: chat '%s'", ErrNotFound, chatID)
		}
		return nil, fmt.Errorf("failed to get chat '%s': %w", chatID, err)
	}
	if !chat.HasParticipant(actor.ID) {
		return nil, fmt.Errorf("%w: '%s' is not a participant of chat '%s'", ErrForbidden, actor.ID, chatID)
	}
	return chat, nil
}

// listMessages reads the chat's messages, falling back to the flat backup when the primary query fails.
func (s *chatService) listMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	msgs, err := s.chats.ListMessages(ctx, chatID, messagePageSize)
	if err == nil {
		return msgs, nil
	}
	s.logger.Warn("primary message query failed, using backup collection", zap.String("chatId", chatID), zap.Error(err))
	msgs, ferr := s.chats.ListMirroredMessages(ctx, chatID, messagePageSize)
	if ferr != nil {
		return nil, fmt.Errorf("failed to list messages for chat '%s': %w", chatID, errors.Join(err, ferr))
	}
	return msgs, nil
}

// markRead flags the unread messages addressed to readerID and zeroes their counter.
// The in-memory messages are updated only once the write succeeded.
func (s *chatService) markRead(ctx context.Context, chat *models.Chat, readerID string, msgs []*models.Message) (int, error) {
	var unread []*models.Message
	for _, m := range msgs {
		if m.RecipientID == readerID && !m.Read {
			unread = append(unread, m)
		}
	}
	if len(unread) == 0 && chat.UnreadCount[readerID] == 0 {
		return 0, nil
	}

	ids := make([]string, len(unread))
	for i, m := range unread {
		ids[i] = m.ID
	}
	at := s.now()
	if err := s.chats.MarkRead(ctx, chat.ID, readerID, ids, at); err != nil {
		return 0, err
	}
	for _, m := range unread {
		m.Read = true
		readAt := at
		m.ReadAt = &readAt
	}
	if chat.UnreadCount == nil {
		chat.UnreadCount = map[string]int{}
	}
	chat.UnreadCount[readerID] = 0
	return len(unread), nil
}

// storeMessage writes the primary copy and mirrors it to the backup collection.
// Only the primary write can fail the call.
func (s *chatService) storeMessage(ctx context.Context, msg *models.Message) error {
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	s.mirror(ctx, msg)
	return nil
}

func (s *chatService) mirror(ctx context.Context, msg *models.Message) {
	if err := s.chats.MirrorMessage(ctx, msg); err != nil {
		observability.BestEffortFailures().WithLabelValues("mirror").Inc()
		s.logger.Warn("failed to mirror message", zap.String("messageId", msg.ID), zap.String("chatId", msg.ChatID), zap.Error(err))
	}
}

func (s *chatService) notifyRecipient(ctx context.Context, sender Actor, recipient *models.Profile, msg *models.Message) {
	preview := truncateRunes(msg.Content, previewMaxRunes)
	title := "New message"
	if sender.Email != "" {
		title = "New message from " + sender.Email
	}

	if s.notifications != nil {
		n := &models.Notification{
			UserID:    recipient.ID,
			Type:      "chat_message",
			Title:     title,
			Message:   preview,
			ChatID:    msg.ChatID,
			SenderID:  sender.ID,
			CreatedAt: msg.CreatedAt,
		}
		if _, err := s.notifications.Create(ctx, n); err != nil {
			observability.BestEffortFailures().WithLabelValues("notification").Inc()
			s.logger.Warn("failed to create notification", zap.String("recipientId", recipient.ID), zap.Error(err))
		}
	}

	if s.notifier != nil && recipient.FCMToken != "" {
		data := map[string]string{"chatId": msg.ChatID, "messageId": msg.ID, "type": "chat_message"}
		if err := s.notifier.SendPush(ctx, recipient.FCMToken, title, preview, data); err != nil {
			observability.BestEffortFailures().WithLabelValues("push").Inc()
			s.logger.Warn("failed to send push notification", zap.String("recipientId", recipient.ID), zap.Error(err))
		}
	}
}

// cleanContent strips markup and enforces the length limits.
func (s *chatService) cleanContent(content string) (string, error) {
	clean := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
	if clean == "" {
		return "", fmt.Errorf("%w: message content is empty", ErrValidation)
	}
	if len([]rune(clean)) > maxMessageRunes {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageRunes)
	}
	return clean, nil
}

// newMessageID returns msg_<unix millis>_<8 random hex chars>.
func newMessageID(now time.Time) string {
	return fmt.Sprintf("msg_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
