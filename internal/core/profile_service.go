package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachhub/coachhub-api/internal/db"
	"github.com/coachhub/coachhub-api/internal/models"
)

type profileService struct {
	profiles db.ProfileRepository
}

// NewProfileService creates a ProfileService instance.
func NewProfileService(profiles db.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles}
}

// GetProfile retrieves a profile from whichever role collection holds the id.
func (s *profileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user '%s'", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get profile '%s': %w", id, err)
	}
	return profile, nil
}

// RoleOf returns the role of id. The lookup is not cached.
func (s *profileService) RoleOf(ctx context.Context, id string) (models.Role, error) {
	profile, err := s.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}
