package plans

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
)

// DefaultAlpha is the smoothing coefficient of a new plan.
const DefaultAlpha = 0.75

const (
	CreatedBySystem = "system"
	CreatedByUser   = "user"
)

var (
	// ErrNoActivePlan indicates that the user has no active diet plan.
	ErrNoActivePlan = errors.New("plans: no active plan")
	// ErrPlanNotActive indicates an update against a superseded plan.
	ErrPlanNotActive = errors.New("plans: plan is not active")
	// ErrInvalidPlan indicates a plan that violates the calorie safety floor or lacks required fields.
	ErrInvalidPlan = errors.New("plans: invalid plan")
)

// DietPlan is a user's calorie and macro plan. At most one plan per user is active.
type DietPlan struct {
	ID       string `gorm:"column:plan_id;primaryKey;size:64;not null" json:"id"`
	UserID   string `gorm:"column:user_id;size:190;not null;index:idx_diet_plans_user_active,priority:1" json:"user_id"`
	IsActive bool   `gorm:"column:is_active;not null;default:true;index:idx_diet_plans_user_active,priority:2" json:"is_active"`
	StartDay string `gorm:"column:start_day;size:10;not null" json:"start_date"`
	EndDay   string `gorm:"column:end_day;size:10;not null;default:''" json:"end_date,omitempty"`

	BMRBaseKcal   int  `gorm:"column:bmr_base_kcal;not null" json:"bmr_base"`
	TDEEEstimated int  `gorm:"column:tdee_estimated;not null" json:"tdee_estimated"`
	TDEEAdaptive  *int `gorm:"column:tdee_adaptive" json:"tdee_adaptive,omitempty"`
	TDEERaw       *int `gorm:"column:tdee_raw" json:"tdee_raw,omitempty"`

	AdaptiveEnabled           bool    `gorm:"column:adaptive_enabled;not null;default:false" json:"adaptive_enabled"`
	Alpha                     float64 `gorm:"column:alpha;not null;default:0.75" json:"alpha"`
	LastAdaptiveUpdateSeconds *int64  `gorm:"column:last_adaptive_update_s" json:"last_adaptive_update_s,omitempty"`
	AdaptiveUpdateCount       int     `gorm:"column:adaptive_update_count;not null;default:0" json:"adaptive_update_count"`

	WorkoutsPerWeek    *int `gorm:"column:workouts_per_week" json:"workouts_per_week,omitempty"`
	CaloriesPerSession *int `gorm:"column:calories_per_session" json:"calories_per_session,omitempty"`

	CalorieTarget         int     `gorm:"column:calorie_target;not null" json:"calorie_target"`
	DeficitSurplusKcal    int     `gorm:"column:deficit_surplus_kcal;not null;default:0" json:"deficit_surplus_kcal"`
	DeficitSurplusPercent float64 `gorm:"column:deficit_surplus_percent;not null;default:0" json:"deficit_surplus_percent"`
	ProteinG              int     `gorm:"column:protein_g;not null" json:"protein_g"`
	CarbG                 int     `gorm:"column:carb_g;not null" json:"carb_g"`
	FatG                  int     `gorm:"column:fat_g;not null" json:"fat_g"`

	Objective nutrition.Objective `gorm:"column:objective;size:32;not null" json:"objective"`
	Strategy  string              `gorm:"column:strategy;type:text;not null;default:''" json:"strategy,omitempty"`
	Notes     string              `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`
	CreatedBy string              `gorm:"column:created_by;size:16;not null;default:'system'" json:"created_by"`

	CreatedAtSeconds int64 `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64 `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (DietPlan) TableName() string {
	return "diet_plans"
}

// BaselineTDEE is the expenditure the plan currently trusts: the adaptive estimate once
// enabled, the activity-factor estimate before that.
func (p DietPlan) BaselineTDEE() int {
	if p.AdaptiveEnabled && p.TDEEAdaptive != nil && *p.TDEEAdaptive > 0 {
		return *p.TDEEAdaptive
	}
	return p.TDEEEstimated
}

// LastAdaptiveUpdate returns the time of the last applied adaptive update.
func (p DietPlan) LastAdaptiveUpdate() (time.Time, bool) {
	if p.LastAdaptiveUpdateSeconds == nil {
		return time.Time{}, false
	}
	return time.Unix(*p.LastAdaptiveUpdateSeconds, 0).UTC(), true
}

// SmoothingAlpha returns the plan's alpha, or DefaultAlpha when unset. An alpha of 1
// keeps the baseline unchanged.
func (p DietPlan) SmoothingAlpha() float64 {
	if p.Alpha > 0 && p.Alpha <= 1 {
		return p.Alpha
	}
	return DefaultAlpha
}

// Macros returns the plan's macro targets.
func (p DietPlan) Macros() nutrition.Macros {
	return nutrition.Macros{ProteinG: p.ProteinG, CarbG: p.CarbG, FatG: p.FatG}
}

// NewPlanOptions carries the plan fields that do not come from the calculator.
type NewPlanOptions struct {
	StartDay           string
	WorkoutsPerWeek    *int
	CaloriesPerSession *int
	Notes              string
	CreatedBy          string
}

// FromTargets builds an unsaved plan for userID from generated targets.
func FromTargets(userID string, targets nutrition.PlanTargets, options NewPlanOptions) DietPlan {
	createdBy := options.CreatedBy
	if createdBy == "" {
		createdBy = CreatedBySystem
	}
	return DietPlan{
		UserID:                userID,
		IsActive:              true,
		StartDay:              options.StartDay,
		BMRBaseKcal:           targets.BMRKcal,
		TDEEEstimated:         targets.TDEEEstimated,
		Alpha:                 DefaultAlpha,
		WorkoutsPerWeek:       options.WorkoutsPerWeek,
		CaloriesPerSession:    options.CaloriesPerSession,
		CalorieTarget:         targets.CalorieTarget,
		DeficitSurplusKcal:    targets.DeficitSurplusKcal,
		DeficitSurplusPercent: targets.DeficitSurplusPercent,
		ProteinG:              targets.Macros.ProteinG,
		CarbG:                 targets.Macros.CarbG,
		FatG:                  targets.Macros.FatG,
		Objective:             targets.Objective,
		Strategy:              targets.Strategy,
		Notes:                 options.Notes,
		CreatedBy:             createdBy,
	}
}

// AdaptiveUpdate is the patch an accepted adaptive estimate applies to the active plan.
type AdaptiveUpdate struct {
	TDEEAdaptive          int              `json:"tdee_adaptive"`
	TDEERaw               int              `json:"tdee_raw"`
	CalorieTarget         int              `json:"calorie_target"`
	DeficitSurplusKcal    int              `json:"deficit_surplus_kcal"`
	DeficitSurplusPercent float64          `json:"deficit_surplus_percent"`
	Macros                nutrition.Macros `json:"macros"`
	AppliedAt             time.Time        `json:"applied_at"`
}

// Apply returns a copy of plan with the update applied.
func (u AdaptiveUpdate) Apply(plan DietPlan) DietPlan {
	updated := plan
	tdeeAdaptive := u.TDEEAdaptive
	tdeeRaw := u.TDEERaw
	appliedAt := u.AppliedAt.UTC().Unix()
	updated.AdaptiveEnabled = true
	updated.TDEEAdaptive = &tdeeAdaptive
	updated.TDEERaw = &tdeeRaw
	updated.LastAdaptiveUpdateSeconds = &appliedAt
	updated.AdaptiveUpdateCount = plan.AdaptiveUpdateCount + 1
	updated.CalorieTarget = u.CalorieTarget
	updated.DeficitSurplusKcal = u.DeficitSurplusKcal
	updated.DeficitSurplusPercent = u.DeficitSurplusPercent
	updated.ProteinG = u.Macros.ProteinG
	updated.CarbG = u.Macros.CarbG
	updated.FatG = u.Macros.FatG
	updated.UpdatedAtSeconds = appliedAt
	return updated
}
