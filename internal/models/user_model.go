package models

import "time"

// Role identifies which profile collection an account lives in.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleUser     Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleUser:
		return true
	}
	return false
}

// Profile is the shared shape of admin, employee and user documents.
// Employees are the coaches; users are their clients.
type Profile struct {
	ID                  string    `json:"id" firestore:"-"`
	Role                Role      `json:"role" firestore:"-"`
	Email               string    `json:"email" firestore:"email"`
	Name                string    `json:"name,omitempty" firestore:"name,omitempty"`
	IsActive            bool      `json:"isActive" firestore:"isActive"`
	SubscriptionExpired bool      `json:"subscriptionExpired,omitempty" firestore:"subscriptionExpired,omitempty"`
	AssignedEmployeeID  string    `json:"assignedEmployeeId,omitempty" firestore:"assignedEmployeeId,omitempty"`
	FCMToken            string    `json:"-" firestore:"fcmToken,omitempty"`
	CreatedAt           time.Time `json:"createdAt" firestore:"createdAt,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt" firestore:"updatedAt,omitempty"`
}
