package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/coachhub/coachhub-api/internal/core"
)

// Identity is a verified bearer token.
type Identity struct {
	UID   string
	Email string
}

// IdentityProvider verifies bearer tokens.
type IdentityProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*Identity, error)
}

// TokenVerifier is the part of the Firebase Auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseIdentity verifies Firebase ID tokens with a bounded wait on the provider.
type FirebaseIdentity struct {
	verifier TokenVerifier
	timeout  time.Duration
}

// NewFirebaseIdentity wraps the Firebase Auth client. A non-positive timeout means 10s.
func NewFirebaseIdentity(verifier TokenVerifier, timeout time.Duration) *FirebaseIdentity {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FirebaseIdentity{verifier: verifier, timeout: timeout}
}

// VerifyToken returns core.ErrDependency when the provider does not answer in time
// and core.ErrUnauthenticated for any rejected token.
func (f *FirebaseIdentity) VerifyToken(ctx context.Context, idToken string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	token, err := f.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: identity provider timed out", core.ErrDependency)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}

	id := &Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}
