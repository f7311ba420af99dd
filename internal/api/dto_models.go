package api

import (
	"time"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/models"
)

// Wire shapes. Every instant leaves the API as an RFC 3339 string.

func wireTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func wireTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := wireTime(*t)
	return &s
}

type SubscriptionDTO struct {
	ID                  string  `json:"id"`
	EmployeeID          string  `json:"employeeId"`
	EmployeeEmail       string  `json:"employeeEmail"`
	Plan                string  `json:"plan"`
	PlanLabel           string  `json:"planLabel"`
	Amount              float64 `json:"amount"`
	PaymentDate         string  `json:"paymentDate"`
	StartDate           string  `json:"startDate"`
	ExpirationDate      string  `json:"expirationDate"`
	Status              string  `json:"status"`
	IsActive            bool    `json:"isActive"`
	ReminderSent        bool    `json:"reminderSent"`
	ExpirationEmailSent bool    `json:"expirationEmailSent"`
	PaymentID           string  `json:"paymentId,omitempty"`
	DaysRemaining       *int    `json:"daysRemaining,omitempty"`
}

func toSubscriptionDTO(s *models.Subscription) *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                  s.ID,
		EmployeeID:          s.EmployeeID,
		EmployeeEmail:       s.EmployeeEmail,
		Plan:                s.Plan,
		PlanLabel:           s.PlanLabel,
		Amount:              s.Amount,
		PaymentDate:         wireTime(s.PaymentDate),
		StartDate:           wireTime(s.StartDate),
		ExpirationDate:      wireTime(s.ExpirationDate),
		Status:              string(s.Status),
		IsActive:            s.IsActive,
		ReminderSent:        s.ReminderSent,
		ExpirationEmailSent: s.ExpirationEmailSent,
		PaymentID:           s.PaymentID,
	}
}

func toSubscriptionViewDTO(v *core.SubscriptionView) *SubscriptionDTO {
	dto := toSubscriptionDTO(v.Subscription)
	days := v.DaysRemaining
	dto.DaysRemaining = &days
	return dto
}

type PaymentDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employeeId"`
	EmployeeName   string  `json:"employeeName,omitempty"`
	EmployeeEmail  string  `json:"employeeEmail"`
	SubscriptionID string  `json:"subscriptionId"`
	Plan           string  `json:"plan"`
	PlanLabel      string  `json:"planLabel"`
	Amount         float64 `json:"amount"`
	Renewed        bool    `json:"renewed"`
	Status         string  `json:"status"`
	ExpirationDate string  `json:"expirationDate"`
	CreatedAt      string  `json:"createdAt"`
}

func toPaymentDTO(p *models.Payment) *PaymentDTO {
	if p == nil {
		return nil
	}
	return &PaymentDTO{
		ID:             p.ID,
		EmployeeID:     p.EmployeeID,
		EmployeeName:   p.EmployeeName,
		EmployeeEmail:  p.EmployeeEmail,
		SubscriptionID: p.SubscriptionID,
		Plan:           p.Plan,
		PlanLabel:      p.PlanLabel,
		Amount:         p.Amount,
		Renewed:        p.Renewed,
		Status:         p.Status,
		ExpirationDate: wireTime(p.ExpirationDate),
		CreatedAt:      wireTime(p.CreatedAt),
	}
}

// RenewResponse is returned by renew and create.
type RenewResponse struct {
	Subscription *SubscriptionDTO `json:"subscription"`
	Payment      *PaymentDTO      `json:"payment"`
}

type ScanResultDTO struct {
	Scanned             int              `json:"scanned"`
	RemindersSent       int              `json:"remindersSent"`
	ExpirationsSent     int              `json:"expirationsSent"`
	DeactivatedAccounts int              `json:"deactivatedAccounts"`
	Errors              []core.ScanError `json:"errors"`
	StartedAt           string           `json:"startedAt"`
	FinishedAt          string           `json:"finishedAt"`
}

func toScanResultDTO(r *core.ScanResult) *ScanResultDTO {
	errs := r.Errors
	if errs == nil {
		errs = []core.ScanError{}
	}
	return &ScanResultDTO{
		Scanned:             r.Scanned,
		RemindersSent:       r.RemindersSent,
		ExpirationsSent:     r.ExpirationsSent,
		DeactivatedAccounts: r.DeactivatedAccounts,
		Errors:              errs,
		StartedAt:           wireTime(r.StartedAt),
		FinishedAt:          wireTime(r.FinishedAt),
	}
}

type LastMessageDTO struct {
	Content   string `json:"content"`
	SenderID  string `json:"senderId"`
	Timestamp string `json:"timestamp"`
}

type ChatDTO struct {
	ID           string          `json:"id"`
	Participants []string        `json:"participants"`
	LastMessage  *LastMessageDTO `json:"lastMessage,omitempty"`
	UnreadCount  map[string]int  `json:"unreadCount"`
	LastActivity string          `json:"lastActivity"`
	CreatedAt    string          `json:"createdAt"`
}

func toChatDTO(c *models.Chat) *ChatDTO {
	dto := &ChatDTO{
		ID:           c.ID,
		Participants: c.Participants,
		UnreadCount:  c.UnreadCount,
		LastActivity: wireTime(c.LastActivity),
		CreatedAt:    wireTime(c.CreatedAt),
	}
	if dto.UnreadCount == nil {
		dto.UnreadCount = map[string]int{}
	}
	if c.LastMessage != nil {
		dto.LastMessage = &LastMessageDTO{
			Content:   c.LastMessage.Content,
			SenderID:  c.LastMessage.SenderID,
			Timestamp: wireTime(c.LastMessage.Timestamp),
		}
	}
	return dto
}

type MessageDTO struct {
	ID          string              `json:"id"`
	ChatID      string              `json:"chatId"`
	SenderID    string              `json:"senderId"`
	SenderRole  string              `json:"senderRole"`
	RecipientID string              `json:"recipientId"`
	Content     string              `json:"content"`
	Type        string              `json:"type"`
	Read        bool                `json:"read"`
	ReadAt      *string             `json:"readAt"`
	CreatedAt   string              `json:"createdAt"`
	Reactions   map[string][]string `json:"reactions"`
}

func toMessageDTO(m *models.Message) *MessageDTO {
	reactions := m.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	return &MessageDTO{
		ID:          m.ID,
		ChatID:      m.ChatID,
		SenderID:    m.SenderID,
		SenderRole:  string(m.SenderRole),
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Type:        m.Type,
		Read:        m.Read,
		ReadAt:      wireTimePtr(m.ReadAt),
		CreatedAt:   wireTime(m.CreatedAt),
		Reactions:   reactions,
	}
}

func toMessageDTOs(msgs []*models.Message) []*MessageDTO {
	out := make([]*MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}

type ProfileDTO struct {
	ID                  string `json:"id"`
	Role                string `json:"role"`
	Email               string `json:"email"`
	Name                string `json:"name,omitempty"`
	IsActive            bool   `json:"isActive"`
	SubscriptionExpired bool   `json:"subscriptionExpired,omitempty"`
	AssignedEmployeeID  string `json:"assignedEmployeeId,omitempty"`
}

func toProfileDTO(p *models.Profile) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:                  p.ID,
		Role:                string(p.Role),
		Email:               p.Email,
		Name:                p.Name,
		IsActive:            p.IsActive,
		SubscriptionExpired: p.SubscriptionExpired,
		AssignedEmployeeID:  p.AssignedEmployeeID,
	}
}

type ConversationDTO struct {
	Chat   *ChatDTO    `json:"chat"`
	Other  *ProfileDTO `json:"otherParticipant,omitempty"`
	Unread int         `json:"unread"`
}
