package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/nourishd/go-nourish-backend/internal/domain"
)

func TestProfileUpsert_PreservesCreatedAt(t *testing.T) {
	r := NewProfileRepo(newTestStore(t))
	ctx := context.Background()

	if _, err := r.GetProfile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before onboarding, got %v", err)
	}

	first, err := r.UpsertProfile(ctx, "u1", domain.UserProfile{Name: "Alex", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not stamped: %+v", first)
	}

	second, err := r.UpsertProfile(ctx, "u1", domain.UserProfile{Name: "Alexandra", Age: 30})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("createdAt must survive updates: %v != %v", second.CreatedAt, first.CreatedAt)
	}
	if second.Name != "Alexandra" || second.Age != 30 {
		t.Fatalf("update not applied: %+v", second)
	}

	got, err := r.GetProfile(ctx, "u1")
	if err != nil || got.Name != "Alexandra" {
		t.Fatalf("get after upsert: %+v (%v)", got, err)
	}
}

func TestPreferences_SaveAndGet(t *testing.T) {
	r := NewProfileRepo(newTestStore(t))
	ctx := context.Background()

	if _, err := r.GetPreferences(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before saving, got %v", err)
	}

	in := domain.Preferences{
		MedicalConditions: []string{"Diabetes"},
		DietaryGoals:      []string{"keto"},
		Allergies:         []string{"peanuts"},
	}
	if err := r.SavePreferences(ctx, "u1", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := r.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.MedicalConditions) != 1 || got.MedicalConditions[0] != "Diabetes" ||
		len(got.DietaryGoals) != 1 || got.DietaryGoals[0] != "keto" ||
		len(got.Allergies) != 1 || got.Allergies[0] != "peanuts" {
		t.Fatalf("preferences mismatch: %+v", got)
	}
	if got.Empty() {
		t.Fatalf("saved preferences must not report empty")
	}
}

func TestSeedOptions_OnlyWhenAbsent(t *testing.T) {
	r := NewProfileRepo(newTestStore(t))
	ctx := context.Background()

	if err := r.SeedOptions(ctx, DefaultOptions()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	opts, err := r.Options(ctx)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(opts.DietaryGoals) == 0 || len(opts.BloodGroups) == 0 {
		t.Fatalf("seeded options incomplete: %+v", opts)
	}

	// A second seed with different content must not overwrite.
	if err := r.SeedOptions(ctx, domain.ApplicationOptions{DietaryGoals: []string{"other"}}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	again, err := r.Options(ctx)
	if err != nil {
		t.Fatalf("options after reseed: %v", err)
	}
	if len(again.DietaryGoals) == 1 && again.DietaryGoals[0] == "other" {
		t.Fatalf("seed overwrote existing options")
	}
}
