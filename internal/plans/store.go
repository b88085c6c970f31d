package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/identifier"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opStoreNew            = "plans.store.new"
	opActive              = "plans.active"
	opCreate              = "plans.create"
	opHistory             = "plans.history"
	opApplyAdaptive       = "plans.apply_adaptive_update"
	reasonMissingDatabase = "missing_database"
	reasonInvalidInput    = "invalid_input"
	reasonQueryFailed     = "query_failed"
	reasonSaveFailed      = "save_failed"
	reasonIDFailed        = "id_generation_failed"
	reasonNotFound        = "not_found"
	reasonNotActive       = "not_active"
	queryActivePlan       = "user_id = ? AND is_active = ?"
	defaultHistoryLimit   = 20
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig describes the dependencies of the plan store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Store persists diet plans.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, faults.New(opStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, faults.New(opStoreNew, "missing_id_provider", errors.New("id provider is required"))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Active returns the user's active plan. ErrNoActivePlan is wrapped when there is none.
func (s *Store) Active(ctx context.Context, userID string) (DietPlan, error) {
	if s.db == nil {
		return DietPlan{}, faults.New(opActive, reasonMissingDatabase, errMissingDatabase)
	}
	var plan DietPlan
	err := s.db.WithContext(ctx).
		Where(queryActivePlan, strings.TrimSpace(userID), true).
		Order("start_day DESC").
		Order("created_at_s DESC").
		Take(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DietPlan{}, faults.New(opActive, reasonNotFound, ErrNoActivePlan)
	}
	if err != nil {
		s.logError(opActive, reasonQueryFailed, err, zap.String("user_id", userID))
		return DietPlan{}, faults.New(opActive, reasonQueryFailed, err)
	}
	return plan, nil
}

// Create stores plan as the user's active plan and closes the previously active one.
func (s *Store) Create(ctx context.Context, plan DietPlan) (DietPlan, error) {
	if s.db == nil {
		return DietPlan{}, faults.New(opCreate, reasonMissingDatabase, errMissingDatabase)
	}
	userID, err := measurements.NormalizeUserID(plan.UserID)
	if err != nil {
		return DietPlan{}, faults.New(opCreate, reasonInvalidInput, err)
	}
	if err := validatePlan(plan); err != nil {
		return DietPlan{}, faults.New(opCreate, reasonInvalidInput, err)
	}
	now := s.clock().UTC()
	today := measurements.FormatDay(now)
	plan.UserID = userID
	if strings.TrimSpace(plan.StartDay) == "" {
		plan.StartDay = today
	}
	if plan.Alpha == 0 {
		plan.Alpha = DefaultAlpha
	}
	if plan.CreatedBy == "" {
		plan.CreatedBy = CreatedBySystem
	}
	plan.IsActive = true
	plan.CreatedAtSeconds = now.Unix()
	plan.UpdatedAtSeconds = now.Unix()

	id, err := s.idProvider.NewID()
	if err != nil {
		return DietPlan{}, faults.New(opCreate, reasonIDFailed, err)
	}
	plan.ID = id

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&DietPlan{}).
			Where(queryActivePlan, userID, true).
			Updates(map[string]any{
				"is_active":    false,
				"end_day":      today,
				"updated_at_s": now.Unix(),
			}).Error; err != nil {
			return err
		}
		return tx.Create(&plan).Error
	})
	if txErr != nil {
		s.logError(opCreate, reasonSaveFailed, txErr, zap.String("user_id", userID))
		return DietPlan{}, faults.New(opCreate, reasonSaveFailed, txErr)
	}
	return plan, nil
}

// History returns the user's plans newest-first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]DietPlan, error) {
	if s.db == nil {
		return nil, faults.New(opHistory, reasonMissingDatabase, errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var history []DietPlan
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at_s DESC").
		Limit(limit).
		Find(&history).Error; err != nil {
		s.logError(opHistory, reasonQueryFailed, err, zap.String("user_id", userID))
		return nil, faults.New(opHistory, reasonQueryFailed, err)
	}
	return history, nil
}

// ApplyAdaptiveUpdate writes an accepted adaptive estimate onto the active plan planID.
func (s *Store) ApplyAdaptiveUpdate(ctx context.Context, userID, planID string, update AdaptiveUpdate) (DietPlan, error) {
	if s.db == nil {
		return DietPlan{}, faults.New(opApplyAdaptive, reasonMissingDatabase, errMissingDatabase)
	}
	var updated DietPlan
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current DietPlan
		err := tx.Where("user_id = ? AND plan_id = ?", strings.TrimSpace(userID), strings.TrimSpace(planID)).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return faults.New(opApplyAdaptive, reasonNotFound, ErrNoActivePlan)
		}
		if err != nil {
			return faults.New(opApplyAdaptive, reasonQueryFailed, err)
		}
		if !current.IsActive {
			return faults.New(opApplyAdaptive, reasonNotActive, ErrPlanNotActive)
		}
		updated = update.Apply(current)
		if err := validatePlan(updated); err != nil {
			return faults.New(opApplyAdaptive, reasonInvalidInput, err)
		}
		if err := tx.Save(&updated).Error; err != nil {
			return faults.New(opApplyAdaptive, reasonSaveFailed, err)
		}
		return nil
	})
	if txErr != nil {
		s.logError(opApplyAdaptive, faults.CodeOf(txErr), txErr, zap.String("user_id", userID), zap.String("plan_id", planID))
		return DietPlan{}, txErr
	}
	return updated, nil
}

func validatePlan(plan DietPlan) error {
	if plan.BMRBaseKcal <= 0 || plan.TDEEEstimated <= 0 {
		return fmt.Errorf("%w: bmr and estimated tdee are required", ErrInvalidPlan)
	}
	if _, err := nutrition.ParseObjective(string(plan.Objective)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if plan.Alpha < 0 || plan.Alpha > 1 {
		return fmt.Errorf("%w: alpha %.2f outside (0, 1]", ErrInvalidPlan, plan.Alpha)
	}
	if plan.CalorieTarget < nutrition.SafetyFloor(plan.BMRBaseKcal) {
		return fmt.Errorf("%w: calorie target %d below safety floor %d", ErrInvalidPlan, plan.CalorieTarget, nutrition.SafetyFloor(plan.BMRBaseKcal))
	}
	return nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("plan store error", attrs...)
}
