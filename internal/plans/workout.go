package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opActiveWorkout  = "plans.active_workout"
	opCreateWorkout  = "plans.create_workout"
	opWorkoutHistory = "plans.workout_history"
)

// ErrNoActiveWorkoutPlan indicates that the user has no active workout plan.
var ErrNoActiveWorkoutPlan = errors.New("plans: no active workout plan")

// WorkoutIntensity grades the training load of a workout plan.
type WorkoutIntensity string

const (
	WorkoutIntensityLow      WorkoutIntensity = "low"
	WorkoutIntensityModerate WorkoutIntensity = "moderate"
	WorkoutIntensityHigh     WorkoutIntensity = "high"
)

// WorkoutFocus is the training quality a workout plan prioritises.
type WorkoutFocus string

const (
	WorkoutFocusStrength    WorkoutFocus = "strength"
	WorkoutFocusHypertrophy WorkoutFocus = "hypertrophy"
	WorkoutFocusEndurance   WorkoutFocus = "endurance"
	WorkoutFocusMixed       WorkoutFocus = "mixed"
)

// WorkoutPlan is a user's training schedule. It is versioned like DietPlan: creating a
// plan closes the previously active one.
type WorkoutPlan struct {
	ID       string `gorm:"column:plan_id;primaryKey;size:64;not null" json:"id"`
	UserID   string `gorm:"column:user_id;size:190;not null;index:idx_workout_plans_user_active,priority:1" json:"user_id"`
	IsActive bool   `gorm:"column:is_active;not null;default:true;index:idx_workout_plans_user_active,priority:2" json:"is_active"`
	StartDay string `gorm:"column:start_day;size:10;not null" json:"start_date"`
	EndDay   string `gorm:"column:end_day;size:10;not null;default:''" json:"end_date,omitempty"`

	SessionsPerWeek *int             `gorm:"column:sessions_per_week" json:"sessions_per_week,omitempty"`
	Intensity       WorkoutIntensity `gorm:"column:intensity;size:16;not null;default:''" json:"intensity,omitempty"`
	Focus           WorkoutFocus     `gorm:"column:focus;size:16;not null;default:''" json:"focus,omitempty"`
	WeeklySets      *int             `gorm:"column:weekly_sets" json:"weekly_sets,omitempty"`
	SplitType       string           `gorm:"column:split_type;size:64;not null;default:''" json:"split_type,omitempty"`
	RestDays        *int             `gorm:"column:rest_days" json:"rest_days,omitempty"`

	CardioSessions *int   `gorm:"column:cardio_sessions" json:"cardio_sessions,omitempty"`
	CardioType     string `gorm:"column:cardio_type;size:32;not null;default:''" json:"cardio_type,omitempty"`
	CardioMinutes  *int   `gorm:"column:cardio_minutes" json:"cardio_minutes,omitempty"`

	Strategy  string `gorm:"column:strategy;type:text;not null;default:''" json:"strategy,omitempty"`
	Notes     string `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`
	CreatedBy string `gorm:"column:created_by;size:16;not null;default:'user'" json:"created_by"`

	CreatedAtSeconds int64 `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64 `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (WorkoutPlan) TableName() string {
	return "workout_plans"
}

// ActiveWorkout returns the user's active workout plan. ErrNoActiveWorkoutPlan is wrapped when there is none.
func (s *Store) ActiveWorkout(ctx context.Context, userID string) (WorkoutPlan, error) {
	if s.db == nil {
		return WorkoutPlan{}, faults.New(opActiveWorkout, reasonMissingDatabase, errMissingDatabase)
	}
	var plan WorkoutPlan
	err := s.db.WithContext(ctx).
		Where(queryActivePlan, strings.TrimSpace(userID), true).
		Order("start_day DESC").
		Order("created_at_s DESC").
		Take(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return WorkoutPlan{}, faults.New(opActiveWorkout, reasonNotFound, ErrNoActiveWorkoutPlan)
	}
	if err != nil {
		s.logError(opActiveWorkout, reasonQueryFailed, err, zap.String("user_id", userID))
		return WorkoutPlan{}, faults.New(opActiveWorkout, reasonQueryFailed, err)
	}
	return plan, nil
}

// CreateWorkout stores plan as the user's active workout plan and closes the previously active one.
func (s *Store) CreateWorkout(ctx context.Context, plan WorkoutPlan) (WorkoutPlan, error) {
	if s.db == nil {
		return WorkoutPlan{}, faults.New(opCreateWorkout, reasonMissingDatabase, errMissingDatabase)
	}
	userID, err := measurements.NormalizeUserID(plan.UserID)
	if err != nil {
		return WorkoutPlan{}, faults.New(opCreateWorkout, reasonInvalidInput, err)
	}
	if err := validateWorkoutPlan(plan); err != nil {
		return WorkoutPlan{}, faults.New(opCreateWorkout, reasonInvalidInput, err)
	}
	now := s.clock().UTC()
	today := measurements.FormatDay(now)
	plan.UserID = userID
	plan.StartDay = strings.TrimSpace(plan.StartDay)
	if plan.StartDay == "" {
		plan.StartDay = today
	}
	if plan.CreatedBy == "" {
		plan.CreatedBy = CreatedByUser
	}
	plan.IsActive = true
	plan.EndDay = ""
	plan.CreatedAtSeconds = now.Unix()
	plan.UpdatedAtSeconds = now.Unix()

	id, err := s.idProvider.NewID()
	if err != nil {
		return WorkoutPlan{}, faults.New(opCreateWorkout, reasonIDFailed, err)
	}
	plan.ID = id

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&WorkoutPlan{}).
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
		s.logError(opCreateWorkout, reasonSaveFailed, txErr, zap.String("user_id", userID))
		return WorkoutPlan{}, faults.New(opCreateWorkout, reasonSaveFailed, txErr)
	}
	return plan, nil
}

// WorkoutHistory returns the user's workout plans newest-first.
func (s *Store) WorkoutHistory(ctx context.Context, userID string, limit int) ([]WorkoutPlan, error) {
	if s.db == nil {
		return nil, faults.New(opWorkoutHistory, reasonMissingDatabase, errMissingDatabase)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var history []WorkoutPlan
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at_s DESC").
		Limit(limit).
		Find(&history).Error; err != nil {
		s.logError(opWorkoutHistory, reasonQueryFailed, err, zap.String("user_id", userID))
		return nil, faults.New(opWorkoutHistory, reasonQueryFailed, err)
	}
	return history, nil
}

func validateWorkoutPlan(plan WorkoutPlan) error {
	if plan.SessionsPerWeek != nil && (*plan.SessionsPerWeek < 1 || *plan.SessionsPerWeek > 7) {
		return fmt.Errorf("%w: sessions_per_week %d outside [1, 7]", ErrInvalidPlan, *plan.SessionsPerWeek)
	}
	switch plan.Intensity {
	case "", WorkoutIntensityLow, WorkoutIntensityModerate, WorkoutIntensityHigh:
	default:
		return fmt.Errorf("%w: unknown intensity %q", ErrInvalidPlan, plan.Intensity)
	}
	switch plan.Focus {
	case "", WorkoutFocusStrength, WorkoutFocusHypertrophy, WorkoutFocusEndurance, WorkoutFocusMixed:
	default:
		return fmt.Errorf("%w: unknown focus %q", ErrInvalidPlan, plan.Focus)
	}
	for name, value := range map[string]*int{
		"weekly_sets":     plan.WeeklySets,
		"rest_days":       plan.RestDays,
		"cardio_sessions": plan.CardioSessions,
		"cardio_minutes":  plan.CardioMinutes,
	} {
		if value != nil && *value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidPlan, name)
		}
	}
	if plan.RestDays != nil && *plan.RestDays > 7 {
		return fmt.Errorf("%w: rest_days %d exceeds a week", ErrInvalidPlan, *plan.RestDays)
	}
	if day := strings.TrimSpace(plan.StartDay); day != "" {
		if _, err := measurements.ParseDay(day); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
		}
	}
	return nil
}
