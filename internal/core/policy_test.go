package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coachhub/coachhub-api/internal/models"
)

func TestAuthorize(t *testing.T) {
	admin := Actor{ID: "a1", Role: models.RoleAdmin}
	emp := Actor{ID: "e1", Role: models.RoleEmployee}
	user := Actor{ID: "u1", Role: models.RoleUser}

	cases := []struct {
		name    string
		actor   Actor
		action  Action
		owner   string
		allowed bool
	}{
		{"admin renews anyone", admin, ActionRenewSubscription, "e9", true},
		{"employee renews self", emp, ActionRenewSubscription, "e1", true},
		{"employee renews other", emp, ActionRenewSubscription, "e2", false},
		{"employee without owner", emp, ActionRenewSubscription, "", false},
		{"user renews", user, ActionRenewSubscription, "u1", false},
		{"employee views self", emp, ActionViewSubscription, "e1", true},
		{"employee creates", emp, ActionCreateSubscription, "e1", false},
		{"admin scans", admin, ActionRunExpirationScan, "", true},
		{"employee scans", emp, ActionRunExpirationScan, "", false},
		{"unknown role", Actor{ID: "x", Role: "guest"}, ActionViewSubscription, "x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.actor, tc.action, tc.owner)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestContactPolicies(t *testing.T) {
	admin := &models.Profile{ID: "a1", Role: models.RoleAdmin}
	coach := &models.Profile{ID: "e1", Role: models.RoleEmployee}
	otherCoach := &models.Profile{ID: "e2", Role: models.RoleEmployee}
	client := &models.Profile{ID: "u1", Role: models.RoleUser, AssignedEmployeeID: "e1"}

	adminActor := Actor{ID: "a1", Role: models.RoleAdmin}
	coachActor := Actor{ID: "e1", Role: models.RoleEmployee}
	otherCoachActor := Actor{ID: "e2", Role: models.RoleEmployee}
	clientActor := Actor{ID: "u1", Role: models.RoleUser, AssignedEmployeeID: "e1"}

	cases := []struct {
		name    string
		actor   Actor
		other   *models.Profile
		canSend bool
		canOpen bool
	}{
		{"admin to coach", adminActor, coach, true, true},
		{"admin to client", adminActor, client, true, true},
		{"admin to admin", adminActor, &models.Profile{ID: "a2", Role: models.RoleAdmin}, false, false},
		{"coach to admin", coachActor, admin, true, true},
		{"coach to own client", coachActor, client, true, true},
		{"other coach to client", otherCoachActor, client, false, false},
		{"coach to coach", coachActor, otherCoach, false, false},
		{"client to own coach", clientActor, coach, false, true},
		{"client to other coach", clientActor, otherCoach, false, false},
		{"client to admin", clientActor, admin, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.canSend, CanSend(tc.actor, tc.other) == nil)
			assert.Equal(t, tc.canOpen, CanOpen(tc.actor, tc.other) == nil)
		})
	}
}
