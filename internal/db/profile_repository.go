package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/coachhub/coachhub-api/internal/models"
)

const (
	adminsCollection    = "admins"
	employeesCollection = "employees"
	usersCollection     = "users"
)

// roleCollections is the lookup order used to resolve an id to a role.
var roleCollections = []struct {
	role       models.Role
	collection string
}{
	{models.RoleAdmin, adminsCollection},
	{models.RoleEmployee, employeesCollection},
	{models.RoleUser, usersCollection},
}

func collectionForRole(role models.Role) (string, error) {
	for _, rc := range roleCollections {
		if rc.role == role {
			return rc.collection, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", role)
}

type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a ProfileRepository backed by Firestore.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	return &firestoreProfileRepository{client: client}
}

func (r *firestoreProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty for FindByID")
	}
	for _, rc := range roleCollections {
		snap, err := r.client.Collection(rc.collection).Doc(id).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return nil, fmt.Errorf("failed to read %s/%s: %w", rc.collection, id, err)
		}
		profile, err := decodeProfile(snap, rc.role)
		if err != nil {
			return nil, err
		}
		return profile, nil
	}
	return nil, fmt.Errorf("profile '%s': %w", id, ErrNotFound)
}

func (r *firestoreProfileRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.Profile, error) {
	collection, err := collectionForRole(role)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, r.client.Collection(collection).Query, role)
}

func (r *firestoreProfileRepository) ListUsersByEmployee(ctx context.Context, employeeID string) ([]*models.Profile, error) {
	q := r.client.Collection(usersCollection).Where("assignedEmployeeId", "==", employeeID)
	return r.list(ctx, q, models.RoleUser)
}

func (r *firestoreProfileRepository) SetEmployeeActive(ctx context.Context, employeeID string, active bool, at time.Time) error {
	_, err := r.client.Collection(employeesCollection).Doc(employeeID).Update(ctx, []firestore.Update{
		{Path: "isActive", Value: active},
		{Path: "subscriptionExpired", Value: !active},
		{Path: "updatedAt", Value: at.UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("employee '%s': %w", employeeID, ErrNotFound)
		}
		return fmt.Errorf("failed to update employee '%s': %w", employeeID, err)
	}
	return nil
}

func (r *firestoreProfileRepository) DeactivateEmployeesByEmail(ctx context.Context, email string, at time.Time) (int, error) {
	q := r.client.Collection(employeesCollection).Where("email", "==", strings.ToLower(strings.TrimSpace(email)))
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query employees by email: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	batch := r.client.Batch()
	now := at.UTC()
	for _, snap := range snaps {
		batch.Update(snap.Ref, []firestore.Update{
			{Path: "isActive", Value: false},
			{Path: "subscriptionExpired", Value: true},
			{Path: "updatedAt", Value: now},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to deactivate employees: %w", err)
	}
	return len(snaps), nil
}

func (r *firestoreProfileRepository) list(ctx context.Context, q firestore.Query, role models.Role) ([]*models.Profile, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var profiles []*models.Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s profiles: %w", role, err)
		}
		profile, err := decodeProfile(snap, role)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func decodeProfile(snap *firestore.DocumentSnapshot, role models.Role) (*models.Profile, error) {
	var p models.Profile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile '%s': %w", snap.Ref.ID, err)
	}
	p.ID = snap.Ref.ID
	p.Role = role
	// admins and users have no subscription gate
	if role != models.RoleEmployee {
		if _, ok := snap.Data()["isActive"]; !ok {
			p.IsActive = true
		}
	}
	return &p, nil
}
