// Package assistant assembles the structured user context handed to the
// completion service. The snapshot is rebuilt from the store on every turn;
// inventory and preferences mutate between turns and a cached snapshot
// would degrade the advice.
package assistant

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/repo"
)

// InventoryLine is the prompt-facing projection of one pantry item.
type InventoryLine struct {
	Name       string     `json:"name"`
	Amount     string     `json:"amount"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// ContextSnapshot is the bundle of profile, preferences, and inventory
// state shaped for consumption by the language model prompt. Fields are
// explicit rather than an open map so that prompt construction cannot
// silently drift from what the store holds.
type ContextSnapshot struct {
	Profile     domain.UserProfile `json:"profile"`
	Preferences domain.Preferences `json:"preferences"`
	Inventory   []InventoryLine    `json:"inventorySummary"`
}

// Assembler builds context snapshots from the profile and inventory
// repositories.
type Assembler struct {
	Profiles  *repo.ProfileRepo
	Inventory *repo.InventoryRepo
}

// NewAssembler constructs an Assembler over the given repositories.
func NewAssembler(profiles *repo.ProfileRepo, inventory *repo.InventoryRepo) *Assembler {
	return &Assembler{Profiles: profiles, Inventory: inventory}
}

// Build reads profile, preferences, and the non-deleted inventory list
// concurrently and returns a fresh snapshot.
//
// Degradation policy: a user who has not finished onboarding simply has no
// preferences (or even no profile) yet, so absence degrades to zero values.
// A failing read of profile or inventory fails the build instead; the
// resulting context would be meaningless.
func (a *Assembler) Build(ctx context.Context, userID string) (*ContextSnapshot, error) {
	snap := &ContextSnapshot{
		Preferences: domain.Preferences{
			MedicalConditions: []string{},
			DietaryGoals:      []string{},
			Allergies:         []string{},
		},
		Inventory: []InventoryLine{},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := a.Profiles.GetProfile(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.Profile = *p
		return nil
	})

	g.Go(func() error {
		prefs, err := a.Profiles.GetPreferences(ctx, userID)
		if err != nil {
			// Missing or unreadable preferences never sink the turn;
			// empty sets are an acceptable degradation.
			return nil
		}
		snap.Preferences = *prefs
		return nil
	})

	g.Go(func() error {
		items, err := a.Inventory.List(ctx, userID)
		if err != nil {
			return err
		}
		lines := make([]InventoryLine, 0, len(items))
		for _, it := range items {
			lines = append(lines, InventoryLine{
				Name:       it.Name,
				Amount:     it.Amount,
				ExpiryDate: it.ExpiryDate,
			})
		}
		snap.Inventory = lines
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
