package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/coachhub/coachhub-api/internal/models"
)

const (
	chatsCollection    = "chats"
	messagesCollection = "messages" // subcollection name and flat backup collection name
)

type firestoreChatRepository struct {
	client *firestore.Client
}

// NewFirestoreChatRepository creates a ChatRepository backed by Firestore.
func NewFirestoreChatRepository(client *firestore.Client) ChatRepository {
	return &firestoreChatRepository{client: client}
}

func (r *firestoreChatRepository) chat(chatID string) *firestore.DocumentRef {
	return r.client.Collection(chatsCollection).Doc(chatID)
}

func (r *firestoreChatRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	if chatID == "" {
		return nil, errors.New("chatID cannot be empty")
	}
	snap, err := r.chat(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("chat '%s': %w", chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat '%s': %w", chatID, err)
	}
	var chat models.Chat
	if err := snap.DataTo(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat '%s': %w", chatID, err)
	}
	chat.ID = snap.Ref.ID
	return &chat, nil
}

func (r *firestoreChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	_, err := r.chat(chat.ID).Create(ctx, chat)
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("failed to create chat '%s': %w", chat.ID, err)
	}
	return nil
}

func (r *firestoreChatRepository) ApplyMessage(ctx context.Context, chatID string, participants []string, last models.LastMessage, senderID, recipientID string) error {
	ref := r.chat(chatID)

	_, err := ref.Get(ctx)
	switch {
	case status.Code(err) == codes.NotFound:
		chat := &models.Chat{
			Participants: participants,
			LastMessage:  &last,
			UnreadCount:  map[string]int{senderID: 0, recipientID: 1},
			LastActivity: last.Timestamp,
			CreatedAt:    last.Timestamp,
		}
		_, err = ref.Create(ctx, chat)
		if err == nil {
			return nil
		}
		if status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("failed to create chat '%s': %w", chatID, err)
		}
		// another sender created it first, fall through to the merge
	case err != nil:
		return fmt.Errorf("failed to read chat '%s': %w", chatID, err)
	}

	data := map[string]interface{}{
		"participants": participants,
		"lastMessage": map[string]interface{}{
			"content":   last.Content,
			"senderId":  last.SenderID,
			"timestamp": last.Timestamp,
		},
		"lastActivity": last.Timestamp,
		"unreadCount": map[string]interface{}{
			senderID:    0,
			recipientID: firestore.Increment(1),
		},
	}
	if _, err := ref.Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update chat '%s': %w", chatID, err)
	}
	return nil
}

func (r *firestoreChatRepository) ListChatsForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	iter := r.client.Collection(chatsCollection).Where("participants", "array-contains", userID).Documents(ctx)
	defer iter.Stop()

	var chats []*models.Chat
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate chats for '%s': %w", userID, err)
		}
		var chat models.Chat
		if err := snap.DataTo(&chat); err != nil {
			return nil, fmt.Errorf("failed to decode chat '%s': %w", snap.Ref.ID, err)
		}
		chat.ID = snap.Ref.ID
		chats = append(chats, &chat)
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].LastActivity.After(chats[j].LastActivity)
	})
	return chats, nil
}

func (r *firestoreChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if _, err := r.chat(msg.ChatID).Collection(messagesCollection).Doc(msg.ID).Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to store message '%s': %w", msg.ID, err)
	}
	return nil
}

func (r *firestoreChatRepository) MirrorMessage(ctx context.Context, msg *models.Message) error {
	if _, err := r.client.Collection(messagesCollection).Doc(msg.ID).Set(ctx, msg); err != nil {
		return fmt.Errorf("failed to mirror message '%s': %w", msg.ID, err)
	}
	return nil
}

func (r *firestoreChatRepository) GetMessage(ctx context.Context, chatID, messageID string) (*models.Message, error) {
	snap, err := r.chat(chatID).Collection(messagesCollection).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("message '%s': %w", messageID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message '%s': %w", messageID, err)
	}
	return decodeMessage(snap)
}

func (r *firestoreChatRepository) ListMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	q := r.chat(chatID).Collection(messagesCollection).OrderBy("createdAt", firestore.Asc).Limit(limit)
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for chat '%s': %w", chatID, err)
	}
	return decodeMessages(snaps)
}

// ListMirroredMessages queries the flat backup by chat id. No composite index is needed
// because ordering happens here.
func (r *firestoreChatRepository) ListMirroredMessages(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	snaps, err := r.client.Collection(messagesCollection).Where("chatId", "==", chatID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored messages for chat '%s': %w", chatID, err)
	}
	msgs, err := decodeMessages(snaps)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (r *firestoreChatRepository) MarkRead(ctx context.Context, chatID, readerID string, messageIDs []string, at time.Time) error {
	batch := r.client.Batch()
	for _, id := range messageIDs {
		batch.Update(r.chat(chatID).Collection(messagesCollection).Doc(id), []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: at},
		})
		batch.Set(r.client.Collection(messagesCollection).Doc(id), map[string]interface{}{
			"read":   true,
			"readAt": at,
		}, firestore.MergeAll)
	}
	batch.Update(r.chat(chatID), []firestore.Update{
		{FieldPath: firestore.FieldPath{"unreadCount", readerID}, Value: 0},
	})
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to mark chat '%s' read for '%s': %w", chatID, readerID, err)
	}
	return nil
}

func (r *firestoreChatRepository) UpdateReactions(ctx context.Context, chatID, messageID string, reactions map[string][]string) error {
	_, err := r.chat(chatID).Collection(messagesCollection).Doc(messageID).Update(ctx, []firestore.Update{
		{Path: "reactions", Value: reactions},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("message '%s': %w", messageID, ErrNotFound)
		}
		return fmt.Errorf("failed to update reactions on '%s': %w", messageID, err)
	}
	return nil
}

func decodeMessages(snaps []*firestore.DocumentSnapshot) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0, len(snaps))
	for _, snap := range snaps {
		msg, err := decodeMessage(snap)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func decodeMessage(snap *firestore.DocumentSnapshot) (*models.Message, error) {
	var msg models.Message
	if err := snap.DataTo(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode message '%s': %w", snap.Ref.ID, err)
	}
	msg.ID = snap.Ref.ID
	return &msg, nil
}
