// Package nutrition turns a BMR reading into energy expenditure, calorie targets and macro splits.
package nutrition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

// ErrInvalidInput indicates an out-of-range value or an unrecognized enum.
var ErrInvalidInput = errors.New("nutrition: invalid input")

// Objective is the body-composition goal a plan is built for.
type Objective string

const (
	ObjectiveCutting       Objective = "cutting"
	ObjectiveBulking       Objective = "bulking"
	ObjectiveRecomposition Objective = "recomposition"
	ObjectiveMaintenance   Objective = "maintenance"
)

// ActivityLevel selects a fixed TDEE multiplier.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityLight     ActivityLevel = "light"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityActive    ActivityLevel = "active"
)

// Intensity selects the deficit or surplus within an objective.
type Intensity string

const (
	IntensityLight      Intensity = "light"
	IntensityLean       Intensity = "lean"
	IntensityModerate   Intensity = "moderate"
	IntensityAggressive Intensity = "aggressive"
)

const (
	MinBMRKcal            = 800
	MaxBMRKcal            = 3500
	MinTDEEKcal           = 1000
	SafetyFloorMultiplier = 1.2

	minWorkoutMultiplier  = 1.2
	maxWorkoutMultiplier  = 1.725
	workoutMultiplierStep = 0.075
	daysPerWeek           = 7
)

var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary: 1.2,
	ActivityLight:     1.375,
	ActivityModerate:  1.55,
	ActivityActive:    1.725,
}

var adjustmentPercents = map[Objective]map[Intensity]float64{
	ObjectiveCutting: {
		IntensityLight:      -15,
		IntensityModerate:   -20,
		IntensityAggressive: -25,
	},
	ObjectiveBulking: {
		IntensityLean:       10,
		IntensityModerate:   15,
		IntensityAggressive: 20,
	},
}

// ParseObjective validates a raw objective.
func ParseObjective(raw string) (Objective, error) {
	objective := Objective(strings.ToLower(strings.TrimSpace(raw)))
	switch objective {
	case ObjectiveCutting, ObjectiveBulking, ObjectiveRecomposition, ObjectiveMaintenance:
		return objective, nil
	}
	return "", fmt.Errorf("%w: objective %q", ErrInvalidInput, raw)
}

// ParseActivityLevel validates a raw activity level.
func ParseActivityLevel(raw string) (ActivityLevel, error) {
	level := ActivityLevel(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := activityMultipliers[level]; !ok {
		return "", fmt.Errorf("%w: activity level %q", ErrInvalidInput, raw)
	}
	return level, nil
}

// HasIntensity reports whether the objective is tuned by an Intensity.
func (o Objective) HasIntensity() bool {
	_, ok := adjustmentPercents[o]
	return ok
}

// ActivityMultiplier returns the TDEE multiplier for level.
func ActivityMultiplier(level ActivityLevel) (float64, error) {
	multiplier, ok := activityMultipliers[level]
	if !ok {
		return 0, fmt.Errorf("%w: activity level %q", ErrInvalidInput, level)
	}
	return multiplier, nil
}

// CalculateTDEE multiplies a scale BMR by the activity factor.
func CalculateTDEE(bmrKcal int, level ActivityLevel) (int, error) {
	if bmrKcal < MinBMRKcal || bmrKcal > MaxBMRKcal {
		return 0, fmt.Errorf("%w: bmr %d outside [%d, %d]", ErrInvalidInput, bmrKcal, MinBMRKcal, MaxBMRKcal)
	}
	multiplier, err := ActivityMultiplier(level)
	if err != nil {
		return 0, err
	}
	return stats.RoundInt(float64(bmrKcal) * multiplier), nil
}

// CustomActivityMultiplier interpolates a multiplier from the weekly workout count.
func CustomActivityMultiplier(workoutsPerWeek int) float64 {
	if workoutsPerWeek <= 0 {
		return minWorkoutMultiplier
	}
	if workoutsPerWeek >= daysPerWeek {
		return maxWorkoutMultiplier
	}
	return stats.RoundTo(minWorkoutMultiplier+float64(workoutsPerWeek)*workoutMultiplierStep, 3)
}

// TDEEFromWorkouts estimates TDEE from the workout count. When the tracker reports
// calories per session the sedentary base plus the averaged workout burn is used.
func TDEEFromWorkouts(bmrKcal, workoutsPerWeek int, caloriesPerSession *int) int {
	if caloriesPerSession != nil && *caloriesPerSession > 0 {
		base := float64(bmrKcal) * SafetyFloorMultiplier
		daily := float64(*caloriesPerSession*workoutsPerWeek) / daysPerWeek
		return stats.RoundInt(base + daily)
	}
	return stats.RoundInt(float64(bmrKcal) * CustomActivityMultiplier(workoutsPerWeek))
}

// SafetyFloor is the lowest calorie target allowed for a BMR.
func SafetyFloor(bmrKcal int) int {
	return stats.RoundInt(float64(bmrKcal) * SafetyFloorMultiplier)
}

// TargetResult is a calorie target with its offset from TDEE. Negative offsets are deficits.
type TargetResult struct {
	TargetCalories        int     `json:"target_calories"`
	DeficitSurplusKcal    int     `json:"deficit_surplus_kcal"`
	DeficitSurplusPercent float64 `json:"deficit_surplus_percent"`
	FloorApplied          bool    `json:"floor_applied"`
}

// AdjustmentPercent returns the deficit (negative) or surplus percent for the combination.
func AdjustmentPercent(objective Objective, intensity Intensity) (float64, error) {
	switch objective {
	case ObjectiveRecomposition, ObjectiveMaintenance:
		return 0, nil
	}
	byIntensity, ok := adjustmentPercents[objective]
	if !ok {
		return 0, fmt.Errorf("%w: objective %q", ErrInvalidInput, objective)
	}
	percent, ok := byIntensity[intensity]
	if !ok {
		return 0, fmt.Errorf("%w: intensity %q for %s", ErrInvalidInput, intensity, objective)
	}
	return percent, nil
}

// TargetCalories applies the objective's deficit or surplus to tdee, never going below
// the BMR safety floor. A floored target reports the offset of the floor.
func TargetCalories(tdeeKcal int, objective Objective, intensity Intensity, bmrKcal int) (TargetResult, error) {
	if tdeeKcal < MinTDEEKcal {
		return TargetResult{}, fmt.Errorf("%w: tdee %d below %d", ErrInvalidInput, tdeeKcal, MinTDEEKcal)
	}
	percent, err := AdjustmentPercent(objective, intensity)
	if err != nil {
		return TargetResult{}, err
	}
	return ApplyAdjustment(tdeeKcal, percent, bmrKcal), nil
}

// ApplyAdjustment offsets tdee by percent and enforces the BMR safety floor.
func ApplyAdjustment(tdeeKcal int, percent float64, bmrKcal int) TargetResult {
	tdee := float64(tdeeKcal)
	target := tdee * (1 + percent/100)
	floor := float64(bmrKcal) * SafetyFloorMultiplier
	floorApplied := false
	if target < floor {
		target = floor
		floorApplied = true
	}
	targetCalories := stats.RoundInt(target)
	return TargetResult{
		TargetCalories:        targetCalories,
		DeficitSurplusKcal:    targetCalories - tdeeKcal,
		DeficitSurplusPercent: stats.RoundTo((target-tdee)/tdee*100, 1),
		FloorApplied:          floorApplied,
	}
}
