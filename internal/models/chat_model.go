package models

import "time"

// Chat is the conversation between exactly two participants.
type Chat struct {
	ID           string         `json:"id" firestore:"-"`
	Participants []string       `json:"participants" firestore:"participants"`
	LastMessage  *LastMessage   `json:"lastMessage,omitempty" firestore:"lastMessage,omitempty"`
	UnreadCount  map[string]int `json:"unreadCount" firestore:"unreadCount"`
	LastActivity time.Time      `json:"lastActivity" firestore:"lastActivity"`
	CreatedAt    time.Time      `json:"createdAt" firestore:"createdAt"`
}

// HasParticipant reports whether userID is one of the two chat members.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// LastMessage is the summary of the most recent message kept on the chat document.
type LastMessage struct {
	Content   string    `json:"content" firestore:"content"`
	SenderID  string    `json:"senderId" firestore:"senderId"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
}

// Message belongs to one chat. A copy lives under the chat and another in the flat backup collection.
type Message struct {
	ID          string              `json:"id" firestore:"id"`
	ChatID      string              `json:"chatId" firestore:"chatId"`
	SenderID    string              `json:"senderId" firestore:"senderId"`
	SenderRole  Role                `json:"senderRole" firestore:"senderRole"`
	RecipientID string              `json:"recipientId" firestore:"recipientId"`
	Content     string              `json:"content" firestore:"content"`
	Type        string              `json:"type" firestore:"type"`
	Read        bool                `json:"read" firestore:"read"`
	ReadAt      *time.Time          `json:"readAt" firestore:"readAt"`
	CreatedAt   time.Time           `json:"createdAt" firestore:"createdAt"`
	Reactions   map[string][]string `json:"reactions,omitempty" firestore:"reactions,omitempty"`
}

// Notification is an in-app notification record.
type Notification struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	Type      string    `json:"type" firestore:"type"`
	Title     string    `json:"title" firestore:"title"`
	Message   string    `json:"message" firestore:"message"`
	ChatID    string    `json:"chatId,omitempty" firestore:"chatId,omitempty"`
	SenderID  string    `json:"senderId,omitempty" firestore:"senderId,omitempty"`
	Read      bool      `json:"read" firestore:"read"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
