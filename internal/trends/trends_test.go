package trends

import (
	"math"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
)

var newestDay = time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func floatPtr(value float64) *float64 {
	return &value
}

// compositionSeries returns count newest-first records whose fat and lean mass move by
// fatStep and leanStep per record going back in time.
func compositionSeries(count int, fatNewest, fatStep, leanNewest, leanStep float64) []measurements.Measurement {
	series := make([]measurements.Measurement, 0, count)
	for index := 0; index < count; index++ {
		fat := round2(fatNewest + float64(index)*fatStep)
		lean := round2(leanNewest + float64(index)*leanStep)
		series = append(series, measurements.Measurement{
			UserID:     "user-1",
			Day:        measurements.FormatDay(newestDay.AddDate(0, 0, -index)),
			WeightKg:   round2(fat + lean),
			FatMassKg:  floatPtr(fat),
			LeanMassKg: floatPtr(lean),
		})
	}
	return series
}

func weightSeries(weights ...float64) []measurements.Measurement {
	series := make([]measurements.Measurement, 0, len(weights))
	for index, weight := range weights {
		series = append(series, measurements.Measurement{
			UserID:   "user-1",
			Day:      measurements.FormatDay(newestDay.AddDate(0, 0, -index)),
			WeightKg: weight,
		})
	}
	return series
}

func TestWeeklyDelta(t *testing.T) {
	declining := weightSeries(71.4, 71.5, 71.6, 71.7, 71.8, 71.9, 72.0)
	if delta := WeeklyDelta(declining, FieldWeight, 7); delta != -0.4 {
		t.Fatalf("expected -0.4 kg/week, got %v", delta)
	}

	fortnight := make([]float64, 0, 14)
	for index := 0; index < 14; index++ {
		fortnight = append(fortnight, round2(70.0+float64(index)*0.1))
	}
	series := weightSeries(fortnight...)
	if delta := WeeklyDelta(series, FieldWeight, 14); delta != -0.55 {
		t.Fatalf("expected the 14 day delta normalised to -0.55, got %v", delta)
	}
	if delta := WeeklyDelta(series, FieldWeight, 7); delta != -0.4 {
		t.Fatalf("expected only the first 7 records to count, got %v", delta)
	}

	if delta := WeeklyDelta(weightSeries(72.0), FieldWeight, 7); delta != 0 {
		t.Fatalf("expected 0 for a single record, got %v", delta)
	}
	if delta := WeeklyDelta(declining, FieldFatMass, 7); delta != 0 {
		t.Fatalf("expected 0 when the field is never recorded, got %v", delta)
	}
}

func TestWeeklyDeltaSkipsMissingValues(t *testing.T) {
	series := weightSeries(71.4, 71.5, 71.6, 71.7, 71.8, 71.9, 72.0)
	series[0].BodyFatPercent = floatPtr(19.0)
	series[6].BodyFatPercent = floatPtr(20.4)
	if delta := WeeklyDelta(series, FieldBodyFatPercent, 7); delta != -1.4 {
		t.Fatalf("expected -1.4 from the two recorded values, got %v", delta)
	}
}

func TestAnalyzeTrends(t *testing.T) {
	if deltas := AnalyzeTrends(weightSeries(72.0), 7); deltas != nil {
		t.Fatalf("expected nil deltas for a single record")
	}
	deltas := AnalyzeTrends(compositionSeries(10, 14.0, 0.06, 58.0, -0.03), 0)
	if deltas == nil {
		t.Fatalf("expected deltas")
	}
	if deltas.PeriodDays != DefaultWindowDays {
		t.Fatalf("expected default window, got %d", deltas.PeriodDays)
	}
	if deltas.FatMassKg != -0.24 || deltas.LeanMassKg != 0.12 {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		objective nutrition.Objective
		deltas    Deltas
		code      Code
		light     Light
	}{
		{name: "recomp perfect", objective: nutrition.ObjectiveRecomposition, deltas: Deltas{FatMassKg: -0.25, LeanMassKg: 0.15, WeightKg: -0.1}, code: CodeRecompPerfect, light: LightGreen},
		{name: "recomp good", objective: nutrition.ObjectiveRecomposition, deltas: Deltas{FatMassKg: -0.2, LeanMassKg: 0}, code: CodeRecompGood, light: LightGreen},
		{name: "muscle loss", objective: nutrition.ObjectiveRecomposition, deltas: Deltas{FatMassKg: 0.1, LeanMassKg: -0.3}, code: CodeMuscleLoss, light: LightRed},
		{name: "recomp plateau", objective: nutrition.ObjectiveRecomposition, deltas: Deltas{FatMassKg: 0.05, LeanMassKg: -0.05}, code: CodeRecompPlateau, light: LightYellow},
		{name: "recomp progress", objective: nutrition.ObjectiveRecomposition, deltas: Deltas{FatMassKg: -0.12, LeanMassKg: -0.15}, code: CodeRecompProgress, light: LightYellow},
		{name: "cutting optimal", objective: nutrition.ObjectiveCutting, deltas: Deltas{FatMassKg: -0.4, LeanMassKg: 0}, code: CodeCuttingOptimal, light: LightGreen},
		{name: "cutting aggressive", objective: nutrition.ObjectiveCutting, deltas: Deltas{FatMassKg: -0.4, LeanMassKg: -0.35}, code: CodeCuttingTooAggressive, light: LightRed},
		{name: "cutting slow", objective: nutrition.ObjectiveCutting, deltas: Deltas{}, code: CodeCuttingTooSlow, light: LightYellow},
		{name: "cutting good", objective: nutrition.ObjectiveCutting, deltas: Deltas{FatMassKg: -0.25, LeanMassKg: -0.2}, code: CodeCuttingGood, light: LightGreen},
		{name: "cutting progress", objective: nutrition.ObjectiveCutting, deltas: Deltas{FatMassKg: -0.15, LeanMassKg: -0.2}, code: CodeCuttingProgress, light: LightYellow},
		{name: "cutting progress fast fat loss", objective: nutrition.ObjectiveCutting, deltas: Deltas{FatMassKg: -0.6, LeanMassKg: -0.2}, code: CodeCuttingProgress, light: LightYellow},
		{name: "bulking lean", objective: nutrition.ObjectiveBulking, deltas: Deltas{LeanMassKg: 0.2, FatMassKg: 0.05}, code: CodeBulkingLean, light: LightGreen},
		{name: "bulking dirty", objective: nutrition.ObjectiveBulking, deltas: Deltas{LeanMassKg: 0.2, FatMassKg: 0.4}, code: CodeBulkingDirty, light: LightRed},
		{name: "bulking slow", objective: nutrition.ObjectiveBulking, deltas: Deltas{LeanMassKg: 0, FatMassKg: 0.1}, code: CodeBulkingTooSlow, light: LightYellow},
		{name: "bulking good", objective: nutrition.ObjectiveBulking, deltas: Deltas{LeanMassKg: 0.12, FatMassKg: 0.15}, code: CodeBulkingGood, light: LightGreen},
		{name: "bulking progress", objective: nutrition.ObjectiveBulking, deltas: Deltas{LeanMassKg: 0.08, FatMassKg: 0.25}, code: CodeBulkingProgress, light: LightYellow},
		{name: "maintenance stable", objective: nutrition.ObjectiveMaintenance, deltas: Deltas{WeightKg: 0.1}, code: CodeMaintenanceStable, light: LightGreen},
		{name: "maintenance losing", objective: nutrition.ObjectiveMaintenance, deltas: Deltas{WeightKg: -0.4}, code: CodeMaintenanceLosing, light: LightYellow},
		{name: "maintenance gaining", objective: nutrition.ObjectiveMaintenance, deltas: Deltas{WeightKg: 0.4}, code: CodeMaintenanceGaining, light: LightYellow},
		{name: "maintenance good", objective: nutrition.ObjectiveMaintenance, deltas: Deltas{WeightKg: -0.2}, code: CodeMaintenanceGood, light: LightGreen},
		{name: "unknown objective", objective: nutrition.Objective("powerlifting"), deltas: Deltas{}, code: CodeUnknown, light: LightGrey},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			deltas := testCase.deltas
			classification := Classify(&deltas, testCase.objective)
			if classification.Code != testCase.code || classification.TrafficLight != testCase.light {
				t.Fatalf("expected %s/%s, got %s/%s", testCase.code, testCase.light, classification.Code, classification.TrafficLight)
			}
			if classification.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}

	insufficient := Classify(nil, nutrition.ObjectiveRecomposition)
	if insufficient.Status != StatusInsufficient || insufficient.Code != CodeDataInsufficient || insufficient.TrafficLight != LightGrey {
		t.Fatalf("unexpected classification for missing deltas %+v", insufficient)
	}
}

func recommendFor(deltas Deltas, objective nutrition.Objective, plan *plans.DietPlan) []Recommendation {
	situation := Classify(&deltas, objective)
	return Recommend(&situation, &deltas, objective, plan)
}

func TestRecommend(t *testing.T) {
	if recommendations := Recommend(nil, nil, nutrition.ObjectiveCutting, nil); len(recommendations) != 1 || recommendations[0].Priority != PriorityLow {
		t.Fatalf("expected a single low priority note, got %+v", recommendations)
	}

	perfect := recommendFor(Deltas{FatMassKg: -0.25, LeanMassKg: 0.15}, nutrition.ObjectiveRecomposition, nil)
	if len(perfect) != 1 || perfect[0].Type != KindKeep || perfect[0].Priority != PriorityHigh {
		t.Fatalf("unexpected recommendations %+v", perfect)
	}

	muscleLoss := recommendFor(Deltas{FatMassKg: 0.1, LeanMassKg: -0.3}, nutrition.ObjectiveRecomposition, nil)
	if len(muscleLoss) != 3 {
		t.Fatalf("expected two specific entries and the lean loss warning, got %+v", muscleLoss)
	}
	if muscleLoss[0].Action != ActionIncreaseProtein || muscleLoss[1].Action != ActionReduceVolume || muscleLoss[2].Type != KindWarning {
		t.Fatalf("unexpected order %+v", muscleLoss)
	}

	slowBulk := recommendFor(Deltas{FatMassKg: 0.1, LeanMassKg: -0.3}, nutrition.ObjectiveBulking, nil)
	if len(slowBulk) != 2 {
		t.Fatalf("expected no lean loss warning while bulking, got %+v", slowBulk)
	}

	stable := recommendFor(Deltas{WeightKg: 0.1, FatMassKg: 0.1, LeanMassKg: 0.1}, nutrition.ObjectiveMaintenance, nil)
	if len(stable) != 1 || stable[0] != monitorRecommendation {
		t.Fatalf("expected the monitoring fallback, got %+v", stable)
	}
}

func TestRecommendSuggestsCalorieTargets(t *testing.T) {
	plan := &plans.DietPlan{BMRBaseKcal: 1606, CalorieTarget: 1900}

	aggressive := recommendFor(Deltas{FatMassKg: -0.4, LeanMassKg: -0.35}, nutrition.ObjectiveCutting, plan)
	if aggressive[0].SuggestedCalorieTarget == nil || *aggressive[0].SuggestedCalorieTarget != 2100 {
		t.Fatalf("expected a 2100 kcal suggestion, got %+v", aggressive[0])
	}
	if aggressive[1].SuggestedCalorieTarget != nil {
		t.Fatalf("expected no calorie suggestion on the protein entry")
	}

	plan.CalorieTarget = 1950
	slow := recommendFor(Deltas{}, nutrition.ObjectiveCutting, plan)
	if len(slow) != 3 {
		t.Fatalf("expected the slow-cut entries plus the no-change note, got %+v", slow)
	}
	if slow[0].SuggestedCalorieTarget == nil || *slow[0].SuggestedCalorieTarget != 1927 {
		t.Fatalf("expected the suggestion floored at 1927, got %+v", slow[0])
	}

	withoutPlan := recommendFor(Deltas{}, nutrition.ObjectiveCutting, nil)
	if withoutPlan[0].SuggestedCalorieTarget != nil || withoutPlan[0].CalorieAdjustmentKcal != -100 {
		t.Fatalf("unexpected suggestion without a plan %+v", withoutPlan[0])
	}
}

func TestAnalyzeComplete(t *testing.T) {
	now := time.Date(2026, 6, 30, 19, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	series := compositionSeries(10, 14.0, 0.06, 58.0, -0.03)

	analysis := AnalyzeComplete(series, nutrition.ObjectiveRecomposition, nil, 7, now)
	if analysis.Situation.Code != CodeRecompPerfect {
		t.Fatalf("expected RECOMP_PERFECT, got %+v", analysis.Situation)
	}
	if len(analysis.Recommendations) != 1 || analysis.Recommendations[0].Type != KindKeep {
		t.Fatalf("unexpected recommendations %+v", analysis.Recommendations)
	}
	metrics := analysis.Metrics
	if metrics.RecordsAnalysed != 7 || metrics.PeriodDays != 7 || !metrics.SufficientData {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
	if metrics.LatestMeasurement == nil || *metrics.LatestMeasurement != "2026-06-30" {
		t.Fatalf("unexpected latest measurement %v", metrics.LatestMeasurement)
	}
	if !analysis.Timestamp.Equal(now) || analysis.Timestamp.Location() != time.UTC {
		t.Fatalf("expected a UTC timestamp, got %v", analysis.Timestamp)
	}
}

func TestAnalyzeCompleteWithLittleData(t *testing.T) {
	empty := AnalyzeComplete(nil, nutrition.ObjectiveCutting, nil, 14, newestDay)
	if empty.Deltas != nil || empty.Situation.Code != CodeDataInsufficient {
		t.Fatalf("expected insufficient analysis, got %+v", empty)
	}
	if empty.Metrics.RecordsAnalysed != 0 || empty.Metrics.SufficientData || empty.Metrics.LatestMeasurement != nil {
		t.Fatalf("unexpected metrics %+v", empty.Metrics)
	}
	if len(empty.Recommendations) != 1 || empty.Recommendations[0] != insufficientRecommendation {
		t.Fatalf("unexpected recommendations %+v", empty.Recommendations)
	}

	pair := AnalyzeComplete(weightSeries(72.0, 72.1), nutrition.ObjectiveMaintenance, nil, 7, newestDay)
	if pair.Deltas == nil || pair.Metrics.SufficientData || pair.Metrics.RecordsAnalysed != 2 {
		t.Fatalf("expected deltas from two records without the sufficiency flag, got %+v", pair)
	}
}
