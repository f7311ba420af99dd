package models

import "time"

// SubscriptionStatus is the persisted lifecycle status of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionExpired SubscriptionStatus = "expired"
)

// Subscription is one paid coverage window for one employee account.
// EmployeeEmail is denormalised so a subscription can be found before the id link exists.
type Subscription struct {
	ID                  string             `json:"id" firestore:"-"`
	EmployeeID          string             `json:"employeeId" firestore:"employeeId"`
	EmployeeEmail       string             `json:"employeeEmail" firestore:"employeeEmail"`
	Plan                string             `json:"plan" firestore:"plan"`
	PlanLabel           string             `json:"planLabel" firestore:"planLabel"`
	Amount              float64            `json:"amount" firestore:"amount"`
	PaymentDate         time.Time          `json:"paymentDate" firestore:"paymentDate"`
	StartDate           time.Time          `json:"startDate" firestore:"startDate"`
	ExpirationDate      time.Time          `json:"expirationDate" firestore:"expirationDate"`
	Status              SubscriptionStatus `json:"status" firestore:"status"`
	IsActive            bool               `json:"isActive" firestore:"isActive"`
	ReminderSent        bool               `json:"reminderSent" firestore:"reminderSent"`
	ExpirationEmailSent bool               `json:"expirationEmailSent" firestore:"expirationEmailSent"`
	PaymentID           string             `json:"paymentId,omitempty" firestore:"paymentId,omitempty"`
	CreatedAt           time.Time          `json:"createdAt" firestore:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" firestore:"updatedAt"`
}

// Live reports whether the subscription currently grants coverage.
func (s *Subscription) Live() bool {
	return s.Status == SubscriptionActive && s.IsActive
}

// Payment is an append-only receipt written for every initial payment and renewal.
type Payment struct {
	ID             string    `json:"id" firestore:"-"`
	EmployeeID     string    `json:"employeeId" firestore:"employeeId"`
	EmployeeName   string    `json:"employeeName,omitempty" firestore:"employeeName,omitempty"`
	EmployeeEmail  string    `json:"employeeEmail" firestore:"employeeEmail"`
	SubscriptionID string    `json:"subscriptionId" firestore:"subscriptionId"`
	Plan           string    `json:"plan" firestore:"plan"`
	PlanLabel      string    `json:"planLabel" firestore:"planLabel"`
	Amount         float64   `json:"amount" firestore:"amount"`
	Renewed        bool      `json:"renewed" firestore:"renewed"`
	Status         string    `json:"status" firestore:"status"`
	ExpirationDate time.Time `json:"expirationDate" firestore:"expirationDate"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt"`
}

// Plan is one entry of the plan catalogue.
type Plan struct {
	Key    string  `json:"key" yaml:"key"`
	Label  string  `json:"label" yaml:"label"`
	Days   int     `json:"days" yaml:"days"`
	Amount float64 `json:"amount" yaml:"amount"`
}
