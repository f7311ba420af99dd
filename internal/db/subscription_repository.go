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
	subscriptionsCollection = "subscriptions"
	paymentsCollection      = "payments"
)

type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a SubscriptionRepository backed by Firestore.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	return &firestoreSubscriptionRepository{client: client}
}

func (r *firestoreSubscriptionRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*models.Subscription, error) {
	if employeeID == "" {
		return nil, errors.New("employeeID cannot be empty")
	}
	return r.first(ctx, r.client.Collection(subscriptionsCollection).Where("employeeId", "==", employeeID))
}

func (r *firestoreSubscriptionRepository) FindByEmployeeEmail(ctx context.Context, email string) (*models.Subscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	return r.first(ctx, r.client.Collection(subscriptionsCollection).Where("employeeEmail", "==", email))
}

func (r *firestoreSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) (string, error) {
	ref := r.client.Collection(subscriptionsCollection).NewDoc()
	sub.ID = ref.ID
	if _, err := ref.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("failed to create subscription: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreSubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == "" {
		return errors.New("subscription ID cannot be empty for Update")
	}
	if _, err := r.client.Collection(subscriptionsCollection).Doc(sub.ID).Set(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription '%s': %w", sub.ID, err)
	}
	return nil
}

func (r *firestoreSubscriptionRepository) MarkReminderSent(ctx context.Context, id string, expected, at time.Time) error {
	return r.updateIfCurrent(ctx, id, expected, []firestore.Update{
		{Path: "reminderSent", Value: true},
		{Path: "updatedAt", Value: at.UTC()},
	})
}

func (r *firestoreSubscriptionRepository) MarkExpired(ctx context.Context, id string, expected, at time.Time) error {
	return r.updateIfCurrent(ctx, id, expected, []firestore.Update{
		{Path: "status", Value: string(models.SubscriptionExpired)},
		{Path: "isActive", Value: false},
		{Path: "expirationEmailSent", Value: true},
		{Path: "updatedAt", Value: at.UTC()},
	})
}

// updateIfCurrent applies the field updates in a transaction that re-reads the document
// and gives up with ErrStale when it is no longer live or its expirationDate moved.
func (r *firestoreSubscriptionRepository) updateIfCurrent(ctx context.Context, id string, expected time.Time, updates []firestore.Update) error {
	if id == "" {
		return errors.New("subscription ID cannot be empty")
	}
	ref := r.client.Collection(subscriptionsCollection).Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("subscription '%s': %w", id, ErrNotFound)
			}
			return err
		}
		var current models.Subscription
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("failed to decode subscription '%s': %w", id, err)
		}
		if !current.Live() || !current.ExpirationDate.Equal(expected) {
			return fmt.Errorf("subscription '%s': %w", id, ErrStale)
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("failed to update subscription '%s': %w", id, err)
	}
	return nil
}

func (r *firestoreSubscriptionRepository) ListLive(ctx context.Context) ([]*models.Subscription, error) {
	q := r.client.Collection(subscriptionsCollection).
		Where("status", "==", string(models.SubscriptionActive)).
		Where("isActive", "==", true)

	iter := q.Documents(ctx)
	defer iter.Stop()

	var subs []*models.Subscription
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate live subscriptions: %w", err)
		}
		var sub models.Subscription
		if err := snap.DataTo(&sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription '%s': %w", snap.Ref.ID, err)
		}
		sub.ID = snap.Ref.ID
		subs = append(subs, &sub)
	}
	return subs, nil
}

func (r *firestoreSubscriptionRepository) first(ctx context.Context, q firestore.Query) (*models.Subscription, error) {
	snaps, err := q.Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	var sub models.Subscription
	if err := snaps[0].DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription '%s': %w", snaps[0].Ref.ID, err)
	}
	sub.ID = snaps[0].Ref.ID
	return &sub, nil
}

type firestorePaymentRepository struct {
	client *firestore.Client
}

// NewFirestorePaymentRepository creates a PaymentRepository backed by Firestore.
func NewFirestorePaymentRepository(client *firestore.Client) PaymentRepository {
	return &firestorePaymentRepository{client: client}
}

// Create appends a receipt. Receipts are never updated afterwards.
func (r *firestorePaymentRepository) Create(ctx context.Context, payment *models.Payment) (string, error) {
	ref := r.client.Collection(paymentsCollection).NewDoc()
	payment.ID = ref.ID
	if _, err := ref.Create(ctx, payment); err != nil {
		return "", fmt.Errorf("failed to create payment: %w", err)
	}
	return ref.ID, nil
}

func (r *firestorePaymentRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*models.Payment, error) {
	q := r.client.Collection(paymentsCollection).
		Where("employeeId", "==", employeeID).
		OrderBy("createdAt", firestore.Desc)

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for employee '%s': %w", employeeID, err)
	}
	payments := make([]*models.Payment, 0, len(snaps))
	for _, snap := range snaps {
		var p models.Payment
		if err := snap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode payment '%s': %w", snap.Ref.ID, err)
		}
		p.ID = snap.Ref.ID
		payments = append(payments, &p)
	}
	return payments, nil
}
