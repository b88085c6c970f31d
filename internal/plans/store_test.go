package plans

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("plan-%d", p.next), nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestStore(t *testing.T, clock *testClock) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "plans.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&DietPlan{}, &WorkoutPlan{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store, err := NewStore(StoreConfig{Database: db, Clock: clock.Now, IDProvider: &sequenceIDProvider{}})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store
}

func recompositionPlan(t *testing.T, userID string) DietPlan {
	t.Helper()
	targets, err := nutrition.GenerateDietPlan(nutrition.PlanInput{
		BMRKcal:       1606,
		WeightKg:      72,
		Objective:     nutrition.ObjectiveRecomposition,
		ActivityLevel: nutrition.ActivityModerate,
	})
	if err != nil {
		t.Fatalf("failed to generate targets: %v", err)
	}
	return FromTargets(userID, targets, NewPlanOptions{})
}

func TestActiveWithoutPlan(t *testing.T) {
	store := newTestStore(t, &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)})
	_, err := store.Active(context.Background(), "user-1")
	if !errors.Is(err, ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan, got %v", err)
	}
	if code := faults.CodeOf(err); code != "plans.active.not_found" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestCreateDeactivatesPreviousPlan(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	first, err := store.Create(ctx, recompositionPlan(t, "user-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.StartDay != "2026-04-01" || first.Alpha != DefaultAlpha || first.CreatedBy != CreatedBySystem {
		t.Fatalf("unexpected defaults %+v", first)
	}
	if _, err := store.Create(ctx, recompositionPlan(t, "user-2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.now = clock.now.AddDate(0, 0, 10)
	second, err := store.Create(ctx, recompositionPlan(t, "user-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := store.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected newest plan active, got %s", active.ID)
	}

	history, err := store.History(ctx, "user-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two plans, got %d", len(history))
	}
	if history[1].IsActive || history[1].EndDay != "2026-04-11" {
		t.Fatalf("expected first plan closed, got %+v", history[1])
	}

	otherActive, err := store.Active(ctx, "user-2")
	if err != nil || !otherActive.IsActive {
		t.Fatalf("expected other user's plan untouched, got %+v / %v", otherActive, err)
	}
}

func TestCreateRejectsTargetBelowFloor(t *testing.T) {
	store := newTestStore(t, &testClock{now: time.Now()})
	plan := recompositionPlan(t, "user-1")
	plan.CalorieTarget = 1500
	_, err := store.Create(context.Background(), plan)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestApplyAdaptiveUpdate(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	created, err := store.Create(ctx, recompositionPlan(t, "user-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	appliedAt := clock.now.Add(time.Hour)
	update := AdaptiveUpdate{
		TDEEAdaptive:       2431,
		TDEERaw:            2259,
		CalorieTarget:      2431,
		DeficitSurplusKcal: 0,
		Macros:             nutrition.Macros{ProteinG: 144, CarbG: 301, FatG: 72},
		AppliedAt:          appliedAt,
	}
	updated, err := store.ApplyAdaptiveUpdate(ctx, "user-1", created.ID, update)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.AdaptiveEnabled || updated.AdaptiveUpdateCount != 1 {
		t.Fatalf("expected adaptive mode enabled once, got %+v", updated)
	}
	if updated.BaselineTDEE() != 2431 {
		t.Fatalf("expected adaptive baseline, got %d", updated.BaselineTDEE())
	}
	last, ok := updated.LastAdaptiveUpdate()
	if !ok || !last.Equal(appliedAt) {
		t.Fatalf("unexpected last update %v", last)
	}

	reloaded, err := store.Active(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.CarbG != 301 || reloaded.TDEERaw == nil || *reloaded.TDEERaw != 2259 {
		t.Fatalf("expected update persisted, got %+v", reloaded)
	}

	if _, err := store.ApplyAdaptiveUpdate(ctx, "user-1", created.ID, update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reloaded, _ = store.Active(ctx, "user-1")
	if reloaded.AdaptiveUpdateCount != 2 {
		t.Fatalf("expected count 2, got %d", reloaded.AdaptiveUpdateCount)
	}
}

func TestApplyAdaptiveUpdateRejectsSupersededPlan(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := newTestStore(t, clock)
	ctx := context.Background()

	old, err := store.Create(ctx, recompositionPlan(t, "user-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Create(ctx, recompositionPlan(t, "user-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = store.ApplyAdaptiveUpdate(ctx, "user-1", old.ID, AdaptiveUpdate{TDEEAdaptive: 2400, CalorieTarget: 2400, AppliedAt: clock.now})
	if !errors.Is(err, ErrPlanNotActive) {
		t.Fatalf("expected ErrPlanNotActive, got %v", err)
	}
	if _, err := store.ApplyAdaptiveUpdate(ctx, "user-2", old.ID, AdaptiveUpdate{}); !errors.Is(err, ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan for foreign plan, got %v", err)
	}
}

func TestBaselineAndAlphaDefaults(t *testing.T) {
	adaptive := 2300
	plan := DietPlan{TDEEEstimated: 2489, TDEEAdaptive: &adaptive}
	if plan.BaselineTDEE() != 2489 {
		t.Fatalf("expected estimated baseline while adaptive mode is off")
	}
	plan.AdaptiveEnabled = true
	if plan.BaselineTDEE() != 2300 {
		t.Fatalf("expected adaptive baseline")
	}
	if plan.SmoothingAlpha() != DefaultAlpha {
		t.Fatalf("expected default alpha")
	}
	plan.Alpha = 0.6
	if plan.SmoothingAlpha() != 0.6 {
		t.Fatalf("expected plan alpha")
	}
	plan.Alpha = 1
	if plan.SmoothingAlpha() != 1 {
		t.Fatalf("expected an alpha of 1 to be kept")
	}
}

func TestCreateValidatesAlpha(t *testing.T) {
	store := newTestStore(t, &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	frozen := recompositionPlan(t, "user-1")
	frozen.Alpha = 1
	stored, err := store.Create(ctx, frozen)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Alpha != 1 {
		t.Fatalf("expected alpha 1 to be stored as given, got %.2f", stored.Alpha)
	}

	for _, alpha := range []float64{-0.1, 1.5} {
		invalid := recompositionPlan(t, "user-1")
		invalid.Alpha = alpha
		if _, err := store.Create(ctx, invalid); !errors.Is(err, ErrInvalidPlan) {
			t.Fatalf("alpha %.2f: expected ErrInvalidPlan, got %v", alpha, err)
		}
	}
}
