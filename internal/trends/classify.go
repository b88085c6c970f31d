package trends

import (
	"math"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
)

// Status is the coarse verdict of a classification.
type Status string

const (
	StatusOptimal      Status = "optimal"
	StatusGood         Status = "good"
	StatusWarning      Status = "warning"
	StatusCritical     Status = "critical"
	StatusSlow         Status = "slow"
	StatusPlateau      Status = "plateau"
	StatusInProgress   Status = "in_progress"
	StatusInsufficient Status = "insufficient"
	StatusUnknown      Status = "unknown"
)

// Light is the traffic-light colour shown next to a classification.
type Light string

const (
	LightGreen  Light = "green"
	LightYellow Light = "yellow"
	LightRed    Light = "red"
	LightGrey   Light = "grey"
)

// Code identifies a classification rule.
type Code string

const (
	CodeDataInsufficient     Code = "DATA_INSUFFICIENT"
	CodeUnknown              Code = "UNKNOWN"
	CodeRecompPerfect        Code = "RECOMP_PERFECT"
	CodeRecompGood           Code = "RECOMP_GOOD"
	CodeMuscleLoss           Code = "MUSCLE_LOSS"
	CodeRecompPlateau        Code = "RECOMP_PLATEAU"
	CodeRecompProgress       Code = "RECOMP_PROGRESS"
	CodeCuttingOptimal       Code = "CUTTING_OPTIMAL"
	CodeCuttingTooAggressive Code = "CUTTING_TOO_AGGRESSIVE"
	CodeCuttingTooSlow       Code = "CUTTING_TOO_SLOW"
	CodeCuttingGood          Code = "CUTTING_GOOD"
	CodeCuttingProgress      Code = "CUTTING_PROGRESS"
	CodeBulkingLean          Code = "BULKING_LEAN"
	CodeBulkingDirty         Code = "BULKING_DIRTY"
	CodeBulkingTooSlow       Code = "BULKING_TOO_SLOW"
	CodeBulkingGood          Code = "BULKING_GOOD"
	CodeBulkingProgress      Code = "BULKING_PROGRESS"
	CodeMaintenanceStable    Code = "MAINTENANCE_STABLE"
	CodeMaintenanceLosing    Code = "MAINTENANCE_LOSING"
	CodeMaintenanceGaining   Code = "MAINTENANCE_GAINING"
	CodeMaintenanceGood      Code = "MAINTENANCE_GOOD"
)

// Classification is the verdict for one set of deltas.
type Classification struct {
	Status       Status `json:"status" yaml:"status"`
	Code         Code   `json:"code" yaml:"code"`
	TrafficLight Light  `json:"traffic_light" yaml:"traffic_light"`
	Message      string `json:"message" yaml:"message"`
}

type rule struct {
	matches        func(d Deltas) bool
	classification Classification
}

func always(Deltas) bool { return true }

// Thresholds are kg per week. Rules are checked in order and the first match wins.
var rulesByObjective = map[nutrition.Objective][]rule{
	nutrition.ObjectiveRecomposition: {
		{
			matches:        func(d Deltas) bool { return d.FatMassKg < -0.2 && d.LeanMassKg > 0.1 },
			classification: Classification{StatusOptimal, CodeRecompPerfect, LightGreen, "Losing fat and building muscle at the same time. Keep going."},
		},
		{
			matches:        func(d Deltas) bool { return d.FatMassKg < -0.15 && d.LeanMassKg >= -0.1 },
			classification: Classification{StatusGood, CodeRecompGood, LightGreen, "Losing fat while preserving muscle."},
		},
		{
			matches:        func(d Deltas) bool { return d.LeanMassKg < -0.2 },
			classification: Classification{StatusWarning, CodeMuscleLoss, LightRed, "Lean mass is dropping. Raise protein and shrink the deficit."},
		},
		{
			matches:        func(d Deltas) bool { return math.Abs(d.FatMassKg) < 0.1 && math.Abs(d.LeanMassKg) < 0.1 },
			classification: Classification{StatusPlateau, CodeRecompPlateau, LightYellow, "No significant change. Consider small adjustments."},
		},
		{
			matches:        always,
			classification: Classification{StatusInProgress, CodeRecompProgress, LightYellow, "Slow but steady progress. Stay consistent."},
		},
	},
	nutrition.ObjectiveCutting: {
		{
			matches:        func(d Deltas) bool { return d.FatMassKg < -0.3 && d.LeanMassKg >= -0.1 },
			classification: Classification{StatusOptimal, CodeCuttingOptimal, LightGreen, "Optimal cut: losing fat while preserving muscle."},
		},
		{
			matches:        func(d Deltas) bool { return d.LeanMassKg < -0.3 },
			classification: Classification{StatusCritical, CodeCuttingTooAggressive, LightRed, "Deficit too aggressive, muscle is being lost. Increase calories."},
		},
		{
			matches:        func(d Deltas) bool { return d.FatMassKg > -0.1 },
			classification: Classification{StatusSlow, CodeCuttingTooSlow, LightYellow, "Progress is too slow. Consider a slightly larger deficit."},
		},
		{
			matches:        func(d Deltas) bool { return d.FatMassKg < -0.2 && d.FatMassKg > -0.5 },
			classification: Classification{StatusGood, CodeCuttingGood, LightGreen, "The cut is going well."},
		},
		{
			matches:        always,
			classification: Classification{StatusInProgress, CodeCuttingProgress, LightYellow, "Cut in progress. Keep an eye on the weekly numbers."},
		},
	},
	nutrition.ObjectiveBulking: {
		{
			matches:        func(d Deltas) bool { return d.LeanMassKg > 0.15 && d.FatMassKg < 0.1 },
			classification: Classification{StatusOptimal, CodeBulkingLean, LightGreen, "Lean bulk: building muscle with minimal fat."},
		},
		{
			matches:        func(d Deltas) bool { return d.FatMassKg > 0.3 },
			classification: Classification{StatusWarning, CodeBulkingDirty, LightRed, "Surplus too high. Cut calories to avoid excess fat."},
		},
		{
			matches:        func(d Deltas) bool { return d.LeanMassKg < 0.05 },
			classification: Classification{StatusSlow, CodeBulkingTooSlow, LightYellow, "Slow growth. Consider a larger surplus or more training volume."},
		},
		{
			matches:        func(d Deltas) bool { return d.LeanMassKg > 0.1 && d.FatMassKg < 0.2 },
			classification: Classification{StatusGood, CodeBulkingGood, LightGreen, "The bulk is going well."},
		},
		{
			matches:        always,
			classification: Classification{StatusInProgress, CodeBulkingProgress, LightYellow, "Bulk in progress. Keep an eye on the weekly numbers."},
		},
	},
	nutrition.ObjectiveMaintenance: {
		{
			matches:        func(d Deltas) bool { return math.Abs(d.WeightKg) < 0.2 },
			classification: Classification{StatusOptimal, CodeMaintenanceStable, LightGreen, "Weight is stable."},
		},
		{
			matches:        func(d Deltas) bool { return d.WeightKg < -0.3 },
			classification: Classification{StatusWarning, CodeMaintenanceLosing, LightYellow, "Weight is going down. Eat more if this is not intended."},
		},
		{
			matches:        func(d Deltas) bool { return d.WeightKg > 0.3 },
			classification: Classification{StatusWarning, CodeMaintenanceGaining, LightYellow, "Weight is going up. Eat less if this is not intended."},
		},
		{
			matches:        always,
			classification: Classification{StatusGood, CodeMaintenanceGood, LightGreen, "Weight is within an acceptable range."},
		},
	},
}

var (
	insufficientClassification = Classification{StatusInsufficient, CodeDataInsufficient, LightGrey, "Keep tracking for at least 7 days to see a trend."}
	unknownClassification      = Classification{StatusUnknown, CodeUnknown, LightGrey, "Objective not recognised."}
)

// Classify runs the objective's decision table against deltas.
func Classify(deltas *Deltas, objective nutrition.Objective) Classification {
	if deltas == nil {
		return insufficientClassification
	}
	rules, ok := rulesByObjective[objective]
	if !ok {
		return unknownClassification
	}
	for _, candidate := range rules {
		if candidate.matches(*deltas) {
			return candidate.classification
		}
	}
	return unknownClassification
}
