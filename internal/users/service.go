package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidProfile indicates an update with an unusable field value.
var ErrInvalidProfile = errors.New("users: invalid profile")

// ServiceConfig describes the dependencies required for profile management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages user profiles, creating the default profile on first use.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// Resolve returns the user's profile. A profile with the default objective and activity
// level is created the first time a user is seen.
func (s *Service) Resolve(ctx context.Context, userID string) (Profile, error) {
	normalizedID, err := measurements.NormalizeUserID(userID)
	if err != nil {
		return Profile{}, err
	}
	if cached, ok := s.cache.Load(normalizedID); ok {
		if profile, ok := cached.(Profile); ok {
			return profile, nil
		}
	}

	var profile Profile
	err = s.db.WithContext(ctx).
		Where("user_id = ?", normalizedID).
		First(&profile).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		nowSeconds := s.now().UTC().Unix()
		profile = Profile{
			UserID:           normalizedID,
			Objective:        DefaultObjective,
			ActivityLevel:    DefaultActivityLevel,
			CreatedAtSeconds: nowSeconds,
			UpdatedAtSeconds: nowSeconds,
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			s.logger.Error("profile create failed", zap.String("user_id", normalizedID), zap.Error(err))
			return Profile{}, err
		}
	} else if err != nil {
		s.logger.Error("profile lookup failed", zap.String("user_id", normalizedID), zap.Error(err))
		return Profile{}, err
	}

	s.cache.Store(normalizedID, profile)
	return profile, nil
}

// Update applies the non-nil fields of update to the user's profile.
func (s *Service) Update(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	profile, err := s.Resolve(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	updates := map[string]interface{}{}
	if update.DisplayName != nil {
		displayName := normalize(*update.DisplayName)
		if len(displayName) > 320 {
			return Profile{}, fmt.Errorf("%w: display name too long", ErrInvalidProfile)
		}
		profile.DisplayName = displayName
		updates["display_name"] = displayName
	}
	if update.Objective != nil {
		objective, err := nutrition.ParseObjective(*update.Objective)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		profile.Objective = objective
		updates["objective"] = string(objective)
	}
	if update.ActivityLevel != nil {
		level, err := nutrition.ParseActivityLevel(*update.ActivityLevel)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		profile.ActivityLevel = level
		updates["activity_level"] = string(level)
	}
	if len(updates) == 0 {
		return profile, nil
	}

	profile.UpdatedAtSeconds = s.now().UTC().Unix()
	updates["updated_at_s"] = profile.UpdatedAtSeconds
	if err := s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("user_id = ?", profile.UserID).
		Updates(updates).
		Error; err != nil {
		s.logger.Error("profile update failed", zap.String("user_id", profile.UserID), zap.Error(err))
		return Profile{}, err
	}

	s.cache.Store(profile.UserID, profile)
	return profile, nil
}
