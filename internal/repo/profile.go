// This file provides the repositories for user profiles, dietary
// preferences, and the application-options vocabulary.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/store"
)

// optionsPath is the store-root node holding the fixed vocabularies. It
// sits outside any user scope; every user reads the same document.
const optionsPath = "application-options"

// ProfileRepo persists the user profile and preferences documents.
type ProfileRepo struct {
	Store store.Store
}

// NewProfileRepo constructs a ProfileRepo over the given store.
func NewProfileRepo(st store.Store) *ProfileRepo {
	return &ProfileRepo{Store: st}
}

// GetProfile returns the user's profile, or ErrNotFound before onboarding.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	sc := store.ScopeTo(r.Store, userID)
	var p domain.UserProfile
	if err := sc.Read(ctx, "profile", &p); err != nil {
		return nil, readErr(err)
	}
	return &p, nil
}

// UpsertProfile creates or updates the profile. Profiles are never
// deleted; createdAt survives updates.
func (r *ProfileRepo) UpsertProfile(ctx context.Context, userID string, p domain.UserProfile) (*domain.UserProfile, error) {
	now := time.Now().UTC()
	existing, err := r.GetProfile(ctx, userID)
	switch {
	case err == nil:
		p.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrNotFound):
		p.CreatedAt = now
	default:
		return nil, err
	}
	p.UpdatedAt = now

	sc := store.ScopeTo(r.Store, userID)
	if err := sc.Write(ctx, "profile", p); err != nil {
		return nil, writeErr(err)
	}
	return &p, nil
}

// GetPreferences returns the user's dietary preferences, or ErrNotFound
// when onboarding has not stored any yet. The context assembler treats
// that case as empty sets rather than a failure.
func (r *ProfileRepo) GetPreferences(ctx context.Context, userID string) (*domain.Preferences, error) {
	sc := store.ScopeTo(r.Store, userID)
	var prefs domain.Preferences
	if err := sc.Read(ctx, "preferences", &prefs); err != nil {
		return nil, readErr(err)
	}
	return &prefs, nil
}

// SavePreferences replaces the preference sets wholesale.
func (r *ProfileRepo) SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	sc := store.ScopeTo(r.Store, userID)
	return writeErr(sc.Write(ctx, "preferences", prefs))
}

// Options returns the application-wide vocabularies from the store root.
func (r *ProfileRepo) Options(ctx context.Context) (*domain.ApplicationOptions, error) {
	var opts domain.ApplicationOptions
	if err := r.Store.Read(ctx, optionsPath, &opts); err != nil {
		return nil, readErr(err)
	}
	return &opts, nil
}

// SeedOptions writes the default vocabularies if none are stored yet.
// Called once at startup; an existing document is left untouched.
func (r *ProfileRepo) SeedOptions(ctx context.Context, opts domain.ApplicationOptions) error {
	var existing domain.ApplicationOptions
	err := r.Store.Read(ctx, optionsPath, &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return readErr(err)
	}
	return writeErr(r.Store.Write(ctx, optionsPath, opts))
}

// DefaultOptions is the vocabulary seeded on first boot.
func DefaultOptions() domain.ApplicationOptions {
	return domain.ApplicationOptions{
		DietaryGoals:      []string{"weight_loss", "muscle_gain", "clean_eating", "keto", "vegan"},
		MedicalConditions: []string{"ADHD", "Anxiety", "Diabetes", "Hypertension"},
		BloodGroups:       []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"},
	}
}
