package models

// RenewSubscriptionRequest is the body of POST /api/subscriptions/renew.
type RenewSubscriptionRequest struct {
	EmployeeID    string `json:"employeeId"`
	EmployeeEmail string `json:"employeeEmail,omitempty" binding:"omitempty,email"`
	Plan          string `json:"plan" binding:"required"`
}

// CreateSubscriptionRequest is the body of POST /api/subscriptions.
type CreateSubscriptionRequest struct {
	EmployeeID string `json:"employeeId" binding:"required"`
	Plan       string `json:"plan" binding:"required"`
	PaymentID  string `json:"paymentId,omitempty"`
}

// SendMessageRequest is the body of POST /api/chat/send.
type SendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"required,max=5000"`
	Type        string `json:"type,omitempty" binding:"omitempty,oneof=text image file"`
}

// CreateOrGetChatRequest is the body of POST /api/chat/create-or-get.
type CreateOrGetChatRequest struct {
	OtherUserID string `json:"otherUserId" binding:"required"`
}

// ReactionRequest is the body of POST /api/chat/reaction.
type ReactionRequest struct {
	ChatID    string `json:"chatId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
	Emoji     string `json:"emoji" binding:"required"`
}
