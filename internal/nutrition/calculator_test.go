package nutrition

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
)

func intPtr(value int) *int {
	return &value
}

func TestCalculateTDEE(t *testing.T) {
	testCases := []struct {
		name      string
		bmr       int
		level     ActivityLevel
		expected  int
		expectErr bool
	}{
		{name: "moderate reference", bmr: 1606, level: ActivityModerate, expected: 2489},
		{name: "sedentary", bmr: 1500, level: ActivitySedentary, expected: 1800},
		{name: "light", bmr: 1600, level: ActivityLight, expected: 2200},
		{name: "active", bmr: 2000, level: ActivityActive, expected: 3450},
		{name: "bmr too low", bmr: 799, level: ActivityModerate, expectErr: true},
		{name: "bmr too high", bmr: 3501, level: ActivityModerate, expectErr: true},
		{name: "unknown level", bmr: 1600, level: ActivityLevel("extreme"), expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			tdee, err := CalculateTDEE(testCase.bmr, testCase.level)
			if testCase.expectErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tdee != testCase.expected {
				t.Fatalf("expected %d, got %d", testCase.expected, tdee)
			}
		})
	}
}

func TestCustomActivityMultiplier(t *testing.T) {
	testCases := map[int]float64{
		-2: 1.2,
		0:  1.2,
		1:  1.275,
		3:  1.425,
		6:  1.65,
		7:  1.725,
		10: 1.725,
	}
	for workouts, expected := range testCases {
		if got := CustomActivityMultiplier(workouts); got != expected {
			t.Fatalf("workouts %d: expected %.3f, got %.3f", workouts, expected, got)
		}
	}
}

func TestTDEEFromWorkouts(t *testing.T) {
	if tdee := TDEEFromWorkouts(1600, 4, nil); tdee != 2400 {
		t.Fatalf("expected multiplier method 2400, got %d", tdee)
	}
	if tdee := TDEEFromWorkouts(1600, 4, intPtr(350)); tdee != 2120 {
		t.Fatalf("expected tracker method 2120, got %d", tdee)
	}
	if tdee := TDEEFromWorkouts(1600, 4, intPtr(0)); tdee != 2400 {
		t.Fatalf("expected zero session calories to fall back, got %d", tdee)
	}
}

func TestTargetCalories(t *testing.T) {
	testCases := []struct {
		name      string
		tdee      int
		objective Objective
		intensity Intensity
		bmr       int
		expected  TargetResult
	}{
		{
			name: "cutting moderate", tdee: 2489, objective: ObjectiveCutting, intensity: IntensityModerate, bmr: 1606,
			expected: TargetResult{TargetCalories: 1991, DeficitSurplusKcal: -498, DeficitSurplusPercent: -20},
		},
		{
			name: "cutting light", tdee: 2400, objective: ObjectiveCutting, intensity: IntensityLight, bmr: 1600,
			expected: TargetResult{TargetCalories: 2040, DeficitSurplusKcal: -360, DeficitSurplusPercent: -15},
		},
		{
			name: "bulking lean", tdee: 2489, objective: ObjectiveBulking, intensity: IntensityLean, bmr: 1606,
			expected: TargetResult{TargetCalories: 2738, DeficitSurplusKcal: 249, DeficitSurplusPercent: 10},
		},
		{
			name: "recomposition ignores intensity", tdee: 2489, objective: ObjectiveRecomposition, intensity: IntensityAggressive, bmr: 1606,
			expected: TargetResult{TargetCalories: 2489},
		},
		{
			name: "floor applied", tdee: 2000, objective: ObjectiveCutting, intensity: IntensityAggressive, bmr: 1500,
			expected: TargetResult{TargetCalories: 1800, DeficitSurplusKcal: -200, DeficitSurplusPercent: -10, FloorApplied: true},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := TargetCalories(testCase.tdee, testCase.objective, testCase.intensity, testCase.bmr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != testCase.expected {
				t.Fatalf("expected %+v, got %+v", testCase.expected, result)
			}
		})
	}
}

func TestTargetCaloriesRejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name      string
		tdee      int
		objective Objective
		intensity Intensity
	}{
		{name: "tdee too low", tdee: 999, objective: ObjectiveMaintenance},
		{name: "unknown objective", tdee: 2000, objective: Objective("shred")},
		{name: "bulking has no light intensity", tdee: 2000, objective: ObjectiveBulking, intensity: IntensityLight},
		{name: "cutting needs intensity", tdee: 2000, objective: ObjectiveCutting},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := TargetCalories(testCase.tdee, testCase.objective, testCase.intensity, 1500); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestTargetCaloriesNeverBelowSafetyFloor(t *testing.T) {
	combinations := []struct {
		objective Objective
		intensity Intensity
	}{
		{ObjectiveCutting, IntensityLight},
		{ObjectiveCutting, IntensityModerate},
		{ObjectiveCutting, IntensityAggressive},
		{ObjectiveBulking, IntensityLean},
		{ObjectiveBulking, IntensityModerate},
		{ObjectiveBulking, IntensityAggressive},
		{ObjectiveRecomposition, ""},
		{ObjectiveMaintenance, ""},
	}
	for bmr := MinBMRKcal; bmr <= MaxBMRKcal; bmr += 100 {
		for _, tdee := range []int{1000, 1500, 2000, 2500, 3500, 5000} {
			for _, combination := range combinations {
				result, err := TargetCalories(tdee, combination.objective, combination.intensity, bmr)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if float64(result.TargetCalories) < math.Floor(float64(bmr)*SafetyFloorMultiplier) {
					t.Fatalf("bmr %d tdee %d %s/%s: target %d below floor", bmr, tdee, combination.objective, combination.intensity, result.TargetCalories)
				}
			}
		}
	}
}

func TestMacroSplitReference(t *testing.T) {
	macros, err := MacroSplit(2489, 71.9, nil, ObjectiveRecomposition)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := Macros{ProteinG: 144, CarbG: 316, FatG: 72}
	if macros != expected {
		t.Fatalf("expected %+v, got %+v", expected, macros)
	}
}

func TestMacroSplitReducesFatWhenCarbsTooLow(t *testing.T) {
	macros, err := MacroSplit(1600, 80, nil, ObjectiveCutting)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := Macros{ProteinG: 176, CarbG: 80, FatG: 64}
	if macros != expected {
		t.Fatalf("expected fat reduced to 0.8 g/kg, got %+v", macros)
	}
}

func TestMacroSplitNeverReturnsNegativeGrams(t *testing.T) {
	testCases := []struct {
		name     string
		target   int
		weightKg float64
		expected Macros
	}{
		{name: "fat absorbs the shortfall", target: 1500, weightKg: 120, expected: Macros{ProteinG: 264, CarbG: 0, FatG: 49}},
		{name: "protein capped at the target", target: 1200, weightKg: 150, expected: Macros{ProteinG: 300, CarbG: 0, FatG: 0}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			macros, err := MacroSplit(testCase.target, testCase.weightKg, nil, ObjectiveCutting)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if macros != testCase.expected {
				t.Fatalf("expected %+v, got %+v", testCase.expected, macros)
			}
		})
	}
}

func TestMacroSplitEnergyMatchesTarget(t *testing.T) {
	objectives := []Objective{ObjectiveCutting, ObjectiveBulking, ObjectiveRecomposition, ObjectiveMaintenance}
	for weight := 40.0; weight <= 150; weight += 7.3 {
		for target := 1200; target <= 4200; target += 150 {
			for _, objective := range objectives {
				macros, err := MacroSplit(target, weight, nil, objective)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if macros.ProteinG < 0 || macros.CarbG < 0 || macros.FatG < 0 {
					t.Fatalf("weight %.1f target %d %s: negative macros %+v", weight, target, objective, macros)
				}
				if diff := macros.Kcal() - target; diff > 10 || diff < -10 {
					t.Fatalf("weight %.1f target %d %s: macros give %d kcal", weight, target, objective, macros.Kcal())
				}
			}
		}
	}
}

func TestMacroSplitRejectsInvalidInput(t *testing.T) {
	if _, err := MacroSplit(900, 70, nil, ObjectiveCutting); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid target error, got %v", err)
	}
	if _, err := MacroSplit(2000, 25, nil, ObjectiveCutting); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid weight error, got %v", err)
	}
	if _, err := MacroSplit(2000, 301, nil, ObjectiveCutting); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid weight error, got %v", err)
	}
}

func declineSeries(days int, startWeight, dailyChange float64, intake int) []measurements.Measurement {
	series := make([]measurements.Measurement, 0, days)
	for index := days - 1; index >= 0; index-- {
		series = append(series, measurements.Measurement{
			Day:                  fmt.Sprintf("2026-01-%02d", index+1),
			WeightKg:             startWeight + float64(index)*dailyChange,
			CaloriesConsumedKcal: intPtr(intake),
		})
	}
	return series
}

func TestReverseTDEE(t *testing.T) {
	series := declineSeries(14, 72.0, -0.02, 2380)
	tdee, ok := ReverseTDEE(series)
	if !ok {
		t.Fatalf("expected an estimate")
	}
	if tdee != 2259 {
		t.Fatalf("expected 2259, got %d", tdee)
	}
	again, _ := ReverseTDEE(series)
	if again != tdee {
		t.Fatalf("expected deterministic result, got %d then %d", tdee, again)
	}
}

func TestReverseTDEERequiresTenCalorieRecords(t *testing.T) {
	series := declineSeries(12, 80, 0, 2200)
	for index := 0; index < 3; index++ {
		series[index].CaloriesConsumedKcal = nil
	}
	if _, ok := ReverseTDEE(series); ok {
		t.Fatalf("expected no estimate with 9 calorie records")
	}
	if _, ok := ReverseTDEE(series[:5]); ok {
		t.Fatalf("expected no estimate for a short series")
	}
}

func TestReverseTDEEUsesNewestFourteenRecords(t *testing.T) {
	series := declineSeries(20, 80, 0, 2000)
	for index := 14; index < 20; index++ {
		series[index].CaloriesConsumedKcal = intPtr(4000)
		series[index].WeightKg = 90
	}
	tdee, ok := ReverseTDEE(series)
	if !ok {
		t.Fatalf("expected an estimate")
	}
	if tdee != 2000 {
		t.Fatalf("expected older records to be ignored, got %d", tdee)
	}
}

func TestGenerateDietPlanActivityLevel(t *testing.T) {
	plan, err := GenerateDietPlan(PlanInput{
		BMRKcal:       1606,
		WeightKg:      71.9,
		Objective:     ObjectiveRecomposition,
		ActivityLevel: ActivityModerate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Method != MethodActivityLevel || plan.TDEEEstimated != 2489 || plan.CalorieTarget != 2489 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if plan.CaloriesFromMacros != 2488 {
		t.Fatalf("unexpected macro energy %d", plan.CaloriesFromMacros)
	}
	if !strings.Contains(plan.Strategy, "maintenance") {
		t.Fatalf("unexpected strategy %q", plan.Strategy)
	}
}

func TestGenerateDietPlanWorkouts(t *testing.T) {
	plan, err := GenerateDietPlan(PlanInput{
		BMRKcal:         1600,
		WeightKg:        80,
		Objective:       ObjectiveCutting,
		WorkoutsPerWeek: intPtr(4),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Method != MethodWorkouts || plan.TDEEEstimated != 2400 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if plan.CalorieTarget != 1920 || plan.DeficitSurplusKcal != -480 || plan.DeficitSurplusPercent != -20 {
		t.Fatalf("expected default moderate deficit, got %+v", plan)
	}
	if plan.Strategy != "Deficit 20% (480 kcal/day). Focus: preserve muscle mass with high protein (176g/day)." {
		t.Fatalf("unexpected strategy %q", plan.Strategy)
	}
}

func TestGenerateDietPlanManual(t *testing.T) {
	plan, err := GenerateDietPlan(PlanInput{
		BMRKcal:   1600,
		WeightKg:  80,
		Objective: ObjectiveCutting,
		Manual:    &ManualTargets{CalorieTarget: 2000, ProteinG: 180, CarbG: 200, FatG: 53},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Method != MethodManual || plan.TDEEEstimated != 2400 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if plan.DeficitSurplusKcal != -400 || plan.DeficitSurplusPercent != -16.7 {
		t.Fatalf("unexpected offset %d / %.1f", plan.DeficitSurplusKcal, plan.DeficitSurplusPercent)
	}
	if plan.CaloriesFromMacros != 1997 {
		t.Fatalf("unexpected macro energy %d", plan.CaloriesFromMacros)
	}
}

func TestGenerateDietPlanRejectsUnknownObjective(t *testing.T) {
	_, err := GenerateDietPlan(PlanInput{BMRKcal: 1600, WeightKg: 80, Objective: Objective("shred"), ActivityLevel: ActivityModerate})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
