package nutrition

import (
	"fmt"
	"math"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

// PlanMethod records how the TDEE of a generated plan was obtained.
type PlanMethod string

const (
	MethodActivityLevel PlanMethod = "activity_level"
	MethodWorkouts      PlanMethod = "workouts"
	MethodManual        PlanMethod = "manual"

	manualTDEEMultiplier = 1.5
	defaultManualNote    = "Custom plan with manually entered targets."
)

// ManualTargets are user supplied targets that bypass the calculator.
type ManualTargets struct {
	CalorieTarget int
	ProteinG      int
	CarbG         int
	FatG          int
	Strategy      string
}

// PlanInput describes the reading and preferences a diet plan is generated from.
// WorkoutsPerWeek selects the workout method over ActivityLevel; Manual bypasses both.
type PlanInput struct {
	BMRKcal            int
	WeightKg           float64
	LeanMassKg         *float64
	Objective          Objective
	Intensity          Intensity
	ActivityLevel      ActivityLevel
	WorkoutsPerWeek    *int
	CaloriesPerSession *int
	Manual             *ManualTargets
}

// PlanTargets is a generated diet plan before persistence.
type PlanTargets struct {
	Method                PlanMethod `json:"method"`
	BMRKcal               int        `json:"bmr_kcal"`
	TDEEEstimated         int        `json:"tdee_estimated"`
	CalorieTarget         int        `json:"calorie_target"`
	DeficitSurplusKcal    int        `json:"deficit_surplus_kcal"`
	DeficitSurplusPercent float64    `json:"deficit_surplus_percent"`
	FloorApplied          bool       `json:"floor_applied"`
	Macros                Macros     `json:"macros"`
	Objective             Objective  `json:"objective"`
	Strategy              string     `json:"strategy"`
	CaloriesFromMacros    int        `json:"calories_from_macros"`
}

// GenerateDietPlan composes TDEE, calorie target and macro split into plan targets.
func GenerateDietPlan(input PlanInput) (PlanTargets, error) {
	if _, err := ParseObjective(string(input.Objective)); err != nil {
		return PlanTargets{}, err
	}
	if input.Manual != nil {
		return manualPlan(input)
	}
	intensity := input.Intensity
	if intensity == "" {
		intensity = IntensityModerate
	}
	if !input.Objective.HasIntensity() {
		intensity = ""
	}

	method := MethodActivityLevel
	var tdee int
	if input.WorkoutsPerWeek != nil {
		if input.BMRKcal < MinBMRKcal || input.BMRKcal > MaxBMRKcal {
			return PlanTargets{}, fmt.Errorf("%w: bmr %d outside [%d, %d]", ErrInvalidInput, input.BMRKcal, MinBMRKcal, MaxBMRKcal)
		}
		if *input.WorkoutsPerWeek < 0 || *input.WorkoutsPerWeek > daysPerWeek {
			return PlanTargets{}, fmt.Errorf("%w: workouts per week %d outside [0, 7]", ErrInvalidInput, *input.WorkoutsPerWeek)
		}
		method = MethodWorkouts
		tdee = TDEEFromWorkouts(input.BMRKcal, *input.WorkoutsPerWeek, input.CaloriesPerSession)
	} else {
		calculated, err := CalculateTDEE(input.BMRKcal, input.ActivityLevel)
		if err != nil {
			return PlanTargets{}, err
		}
		tdee = calculated
	}

	target, err := TargetCalories(tdee, input.Objective, intensity, input.BMRKcal)
	if err != nil {
		return PlanTargets{}, err
	}
	macros, err := MacroSplit(target.TargetCalories, input.WeightKg, input.LeanMassKg, input.Objective)
	if err != nil {
		return PlanTargets{}, err
	}
	return PlanTargets{
		Method:                method,
		BMRKcal:               input.BMRKcal,
		TDEEEstimated:         tdee,
		CalorieTarget:         target.TargetCalories,
		DeficitSurplusKcal:    target.DeficitSurplusKcal,
		DeficitSurplusPercent: target.DeficitSurplusPercent,
		FloorApplied:          target.FloorApplied,
		Macros:                macros,
		Objective:             input.Objective,
		Strategy:              describeStrategy(input.Objective, target, macros),
		CaloriesFromMacros:    macros.Kcal(),
	}, nil
}

func manualPlan(input PlanInput) (PlanTargets, error) {
	manual := input.Manual
	if manual.CalorieTarget <= 0 || manual.ProteinG <= 0 || manual.CarbG <= 0 || manual.FatG <= 0 {
		return PlanTargets{}, fmt.Errorf("%w: manual targets must all be positive", ErrInvalidInput)
	}
	if input.BMRKcal <= 0 {
		return PlanTargets{}, fmt.Errorf("%w: bmr is required", ErrInvalidInput)
	}
	tdee := stats.RoundInt(float64(input.BMRKcal) * manualTDEEMultiplier)
	strategy := manual.Strategy
	if strategy == "" {
		strategy = defaultManualNote
	}
	macros := Macros{ProteinG: manual.ProteinG, CarbG: manual.CarbG, FatG: manual.FatG}
	return PlanTargets{
		Method:                MethodManual,
		BMRKcal:               input.BMRKcal,
		TDEEEstimated:         tdee,
		CalorieTarget:         manual.CalorieTarget,
		DeficitSurplusKcal:    manual.CalorieTarget - tdee,
		DeficitSurplusPercent: stats.RoundTo(float64(manual.CalorieTarget-tdee)/float64(tdee)*100, 1),
		Macros:                macros,
		Objective:             input.Objective,
		Strategy:              strategy,
		CaloriesFromMacros:    macros.Kcal(),
	}, nil
}

func describeStrategy(objective Objective, target TargetResult, macros Macros) string {
	percent := math.Abs(target.DeficitSurplusPercent)
	kcal := target.DeficitSurplusKcal
	if kcal < 0 {
		kcal = -kcal
	}
	switch objective {
	case ObjectiveCutting:
		return fmt.Sprintf("Deficit %g%% (%d kcal/day). Focus: preserve muscle mass with high protein (%dg/day).", percent, kcal, macros.ProteinG)
	case ObjectiveBulking:
		return fmt.Sprintf("Surplus %g%% (+%d kcal/day). Focus: progressive muscle gain with adequate training volume.", percent, kcal)
	case ObjectiveRecomposition:
		return "Calories at maintenance (TDEE). Focus: simultaneous fat loss and muscle gain; requires hard training and high protein."
	default:
		return "Calories at maintenance (TDEE). Focus: stable body composition."
	}
}
