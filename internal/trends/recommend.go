package trends

import (
	"math"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
)

// Priority orders recommendations for display.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Kind groups recommendations by what they ask of the user.
type Kind string

const (
	KindKeep     Kind = "keep"
	KindCritical Kind = "critical"
	KindAdjust   Kind = "adjust"
	KindTraining Kind = "training"
	KindProtein  Kind = "protein"
	KindCardio   Kind = "cardio"
	KindWarning  Kind = "warning"
	KindInfo     Kind = "info"
)

// Action is a machine-readable follow-up attached to a recommendation.
type Action string

const (
	ActionIncreaseProtein  Action = "increase_protein"
	ActionReduceVolume     Action = "reduce_volume"
	ActionIncreaseVolume   Action = "increase_volume"
	ActionDietBreak        Action = "diet_break"
	ActionIncreaseCalories Action = "increase_calories"
	ActionDecreaseCalories Action = "decrease_calories"
	ActionAddCardio        Action = "add_cardio"
)

const (
	leanLossWarningKg = -0.2
	noChangeKg        = 0.05
)

// Recommendation is one suggestion derived from a classification.
type Recommendation struct {
	Type                   Kind     `json:"type" yaml:"type"`
	Message                string   `json:"message" yaml:"message"`
	Priority               Priority `json:"priority" yaml:"priority"`
	Action                 Action   `json:"action,omitempty" yaml:"action,omitempty"`
	CalorieAdjustmentKcal  int      `json:"calorie_adjustment_kcal,omitempty" yaml:"calorie_adjustment_kcal,omitempty"`
	SuggestedCalorieTarget *int     `json:"suggested_calorie_target,omitempty" yaml:"suggested_calorie_target,omitempty"`
}

var recommendationsByCode = map[nutrition.Objective]map[Code][]Recommendation{
	nutrition.ObjectiveRecomposition: {
		CodeRecompPerfect: {
			{Type: KindKeep, Message: "Change nothing. You are in the sweet spot.", Priority: PriorityHigh},
		},
		CodeMuscleLoss: {
			{Type: KindCritical, Message: "Raise protein to 2.4 g/kg and reduce the deficit by 10%.", Priority: PriorityHigh, Action: ActionIncreaseProtein},
			{Type: KindTraining, Message: "Cut training volume by 15-20% and keep the intensity.", Priority: PriorityHigh, Action: ActionReduceVolume},
		},
		CodeRecompPlateau: {
			{Type: KindAdjust, Message: "Try a two-week diet break at maintenance calories.", Priority: PriorityMedium, Action: ActionDietBreak},
		},
	},
	nutrition.ObjectiveCutting: {
		CodeCuttingTooAggressive: {
			{Type: KindCritical, Message: "Add 200 kcal per day right away.", Priority: PriorityHigh, Action: ActionIncreaseCalories, CalorieAdjustmentKcal: 200},
			{Type: KindProtein, Message: "Raise protein to 2.4-2.6 g/kg to preserve muscle.", Priority: PriorityHigh, Action: ActionIncreaseProtein},
		},
		CodeCuttingTooSlow: {
			{Type: KindAdjust, Message: "Remove 100 kcal per day, mostly from carbohydrates.", Priority: PriorityMedium, Action: ActionDecreaseCalories, CalorieAdjustmentKcal: -100},
			{Type: KindCardio, Message: "Add two 30 minute low-intensity cardio sessions per week.", Priority: PriorityMedium, Action: ActionAddCardio},
		},
		CodeCuttingOptimal: {
			{Type: KindKeep, Message: "Keep going. Progress is optimal.", Priority: PriorityHigh},
		},
	},
	nutrition.ObjectiveBulking: {
		CodeBulkingDirty: {
			{Type: KindCritical, Message: "Remove 200 kcal per day, mostly from carbohydrates.", Priority: PriorityHigh, Action: ActionDecreaseCalories, CalorieAdjustmentKcal: -200},
		},
		CodeBulkingTooSlow: {
			{Type: KindAdjust, Message: "Add 150 kcal per day, mostly from carbohydrates.", Priority: PriorityMedium, Action: ActionIncreaseCalories, CalorieAdjustmentKcal: 150},
			{Type: KindTraining, Message: "Increase training volume by 10-15%.", Priority: PriorityMedium, Action: ActionIncreaseVolume},
		},
		CodeBulkingLean: {
			{Type: KindKeep, Message: "Lean bulk on track. Keep going.", Priority: PriorityHigh},
		},
	},
}

var (
	insufficientRecommendation = Recommendation{Type: KindInfo, Message: "Not enough data for recommendations yet. Keep tracking.", Priority: PriorityLow}
	leanLossRecommendation     = Recommendation{Type: KindWarning, Message: "Lean mass loss detected. Preserving muscle comes first.", Priority: PriorityHigh}
	noChangeRecommendation     = Recommendation{Type: KindInfo, Message: "No significant change. Be patient and consistent.", Priority: PriorityLow}
	monitorRecommendation      = Recommendation{Type: KindInfo, Message: "Keep monitoring. Progress is in line with expectations.", Priority: PriorityLow}
)

// Recommend lists suggestions for situation. Objective-specific entries come first,
// followed by general warnings on the raw deltas; a single monitoring note is returned
// when nothing else applies. When plan is set, calorie actions carry a suggested target
// that never drops below the plan's BMR safety floor.
func Recommend(situation *Classification, deltas *Deltas, objective nutrition.Objective, plan *plans.DietPlan) []Recommendation {
	if situation == nil || deltas == nil {
		return []Recommendation{insufficientRecommendation}
	}

	var recommendations []Recommendation
	for _, candidate := range recommendationsByCode[objective][situation.Code] {
		recommendations = append(recommendations, withSuggestedTarget(candidate, plan))
	}

	if deltas.LeanMassKg < leanLossWarningKg && objective != nutrition.ObjectiveBulking {
		recommendations = append(recommendations, leanLossRecommendation)
	}
	if math.Abs(deltas.FatMassKg) < noChangeKg && math.Abs(deltas.LeanMassKg) < noChangeKg {
		recommendations = append(recommendations, noChangeRecommendation)
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, monitorRecommendation)
	}
	return recommendations
}

func withSuggestedTarget(recommendation Recommendation, plan *plans.DietPlan) Recommendation {
	if plan == nil || recommendation.CalorieAdjustmentKcal == 0 || plan.CalorieTarget <= 0 {
		return recommendation
	}
	target := max(plan.CalorieTarget+recommendation.CalorieAdjustmentKcal, nutrition.SafetyFloor(plan.BMRBaseKcal))
	recommendation.SuggestedCalorieTarget = &target
	return recommendation
}
