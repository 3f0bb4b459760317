// Package services – ProfileService
package services

import (
	"context"
	"errors"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
)

// ProfileService exposes profile, preferences, and vocabulary operations.
type ProfileService struct {
	Repo *repo.ProfileRepo
}

// NewProfileService constructs a ProfileService.
func NewProfileService(r *repo.ProfileRepo) *ProfileService {
	return &ProfileService{Repo: r}
}

// GetProfile returns the user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.Repo.GetProfile(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// SaveProfile creates or updates the profile.
func (s *ProfileService) SaveProfile(ctx context.Context, userID string, p domain.UserProfile) (*domain.UserProfile, error) {
	return s.Repo.UpsertProfile(ctx, userID, p)
}

// GetPreferences returns the user's preferences; a user who has not
// completed onboarding gets empty sets, not an error.
func (s *ProfileService) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	prefs, err := s.Repo.GetPreferences(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return &domain.Preferences{
			MedicalConditions: []string{},
			DietaryGoals:      []string{},
			Allergies:         []string{},
		}, nil
	}
	return prefs, err
}

// SavePreferences replaces the preference sets.
func (s *ProfileService) SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	return s.Repo.SavePreferences(ctx, userID, prefs)
}

// Options returns the application-wide vocabularies.
func (s *ProfileService) Options(ctx context.Context) (*domain.ApplicationOptions, error) {
	return s.Repo.Options(ctx)
}
