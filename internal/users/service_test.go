package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Profile{}); err != nil {
		t.Fatalf("failed to migrate profile schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestResolveCreatesDefaultProfile(t *testing.T) {
	service, db := newTestService(t)

	profile, err := service.Resolve(context.Background(), " user-1 ")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if profile.UserID != "user-1" {
		t.Fatalf("expected trimmed user id, got %q", profile.UserID)
	}
	if profile.Objective != nutrition.ObjectiveRecomposition || profile.ActivityLevel != nutrition.ActivityModerate {
		t.Fatalf("unexpected defaults %+v", profile)
	}

	// second call should hit cache and not create a duplicate record.
	if _, err := service.Resolve(context.Background(), "user-1"); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	var count int64
	if err := db.Model(&Profile{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored profile, got %d", count)
	}
}

func TestUpdateProfile(t *testing.T) {
	service, _ := newTestService(t)
	objective := "Cutting"
	name := "  Alex "

	profile, err := service.Update(context.Background(), "user-1", ProfileUpdate{Objective: &objective, DisplayName: &name})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if profile.Objective != nutrition.ObjectiveCutting || profile.DisplayName != "Alex" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	reloaded, err := service.Resolve(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if reloaded.Objective != nutrition.ObjectiveCutting || reloaded.ActivityLevel != nutrition.ActivityModerate {
		t.Fatalf("expected the cached profile to reflect the update, got %+v", reloaded)
	}

	fresh, err := NewService(ServiceConfig{Database: service.db})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	stored, err := fresh.Resolve(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if stored.Objective != nutrition.ObjectiveCutting || stored.DisplayName != "Alex" {
		t.Fatalf("expected the update to be persisted, got %+v", stored)
	}
}

func TestUpdateProfileRejectsUnknownValues(t *testing.T) {
	service, _ := newTestService(t)
	level := "extreme"
	if _, err := service.Update(context.Background(), "user-1", ProfileUpdate{ActivityLevel: &level}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	if _, err := service.Resolve(context.Background(), ""); err == nil {
		t.Fatalf("expected an error for an empty user id")
	}
}
