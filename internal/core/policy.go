package core

import (
	"fmt"

	"github.com/coachhub/coachhub-api/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Email string
	Role  models.Role
	// AssignedEmployeeID is the coach of a user actor.
	AssignedEmployeeID string
}

// ActorFromProfile builds the actor for an authenticated profile.
func ActorFromProfile(p *models.Profile) Actor {
	return Actor{ID: p.ID, Email: p.Email, Role: p.Role, AssignedEmployeeID: p.AssignedEmployeeID}
}

// Action names an operation guarded by the policy table.
type Action string

const (
	ActionRenewSubscription  Action = "subscription:renew"
	ActionViewSubscription   Action = "subscription:view"
	ActionCreateSubscription Action = "subscription:create"
	ActionRunExpirationScan  Action = "subscription:scan"
)

// ownership decides whether an actor may act on a resource owned by ownerID.
type ownership func(actor Actor, ownerID string) bool

func anyOwner(Actor, string) bool { return true }

func selfOnly(actor Actor, ownerID string) bool { return ownerID != "" && actor.ID == ownerID }

// capabilities is the role x action matrix. A missing entry means denied.
var capabilities = map[Action]map[models.Role]ownership{
	ActionRenewSubscription: {
		models.RoleAdmin:    anyOwner,
		models.RoleEmployee: selfOnly,
	},
	ActionViewSubscription: {
		models.RoleAdmin:    anyOwner,
		models.RoleEmployee: selfOnly,
	},
	ActionCreateSubscription: {
		models.RoleAdmin: anyOwner,
	},
	ActionRunExpirationScan: {
		models.RoleAdmin: anyOwner,
	},
}

// Authorize returns ErrForbidden unless actor may perform action on the resource owned by ownerID.
func Authorize(actor Actor, action Action, ownerID string) error {
	rule, ok := capabilities[action][actor.Role]
	if !ok || !rule(actor, ownerID) {
		return fmt.Errorf("%w: %s may not %s for %q", ErrForbidden, actor.Role, action, ownerID)
	}
	return nil
}

// contactRule decides whether sender may reach recipient.
type contactRule func(sender Actor, recipient *models.Profile) bool

func always(Actor, *models.Profile) bool { return true }

func assignedToSender(sender Actor, recipient *models.Profile) bool {
	return recipient.AssignedEmployeeID != "" && recipient.AssignedEmployeeID == sender.ID
}

// sendPolicy says who may send a message to whom. Users never initiate.
var sendPolicy = map[models.Role]map[models.Role]contactRule{
	models.RoleAdmin: {
		models.RoleEmployee: always,
		models.RoleUser:     always,
	},
	models.RoleEmployee: {
		models.RoleAdmin: always,
		models.RoleUser:  assignedToSender,
	},
}

// openPolicy says who may open (or list) a conversation with whom. It extends sendPolicy
// so a user can read and react in the thread with their own coach.
var openPolicy = map[models.Role]map[models.Role]contactRule{
	models.RoleAdmin:    sendPolicy[models.RoleAdmin],
	models.RoleEmployee: sendPolicy[models.RoleEmployee],
	models.RoleUser: {
		models.RoleEmployee: func(sender Actor, recipient *models.Profile) bool {
			return sender.AssignedEmployeeID != "" && sender.AssignedEmployeeID == recipient.ID
		},
	},
}

func checkContact(policy map[models.Role]map[models.Role]contactRule, sender Actor, recipient *models.Profile) error {
	rule, ok := policy[sender.Role][recipient.Role]
	if !ok || !rule(sender, recipient) {
		return fmt.Errorf("%w: %s %q may not contact %s %q", ErrForbidden, sender.Role, sender.ID, recipient.Role, recipient.ID)
	}
	return nil
}

// CanSend reports whether sender may send a message to recipient.
func CanSend(sender Actor, recipient *models.Profile) error {
	return checkContact(sendPolicy, sender, recipient)
}

// CanOpen reports whether actor may open a conversation with other.
func CanOpen(actor Actor, other *models.Profile) error {
	return checkContact(openPolicy, actor, other)
}
