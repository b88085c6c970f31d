// Package adaptive estimates a user's real energy expenditure from logged intake and
// weight change, and decides when that estimate should replace the plan's.
package adaptive

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

var (
	// ErrNoMeasurementData indicates that no weighed measurement exists to recompute macros from.
	ErrNoMeasurementData = errors.New("adaptive: no measurement data")
	// ErrNotActionable indicates an update built from an estimate that could not activate.
	ErrNotActionable = errors.New("adaptive: estimate is not actionable")
)

// Reason tags the outcome of an estimation gate or an update decision.
type Reason string

const (
	ReasonInsufficientData        Reason = "insufficient_data"
	ReasonWeightDeltaInsufficient Reason = "delta_peso_insufficient"
	ReasonCalculationFailed       Reason = "calculation_failed"
	ReasonFirstActivation         Reason = "first_activation"
	ReasonCooldownActive          Reason = "cooldown_active"
	ReasonChangeNotSignificant    Reason = "change_not_significant"
	ReasonSignificantChange       Reason = "significant_change"
)

// Config holds the estimator thresholds.
type Config struct {
	MinMeasurements          int
	WindowDays               int
	MinDaysBetweenUpdates    int
	SignificantChangePercent float64
	MinWeightDeltaKg         float64
	DefaultAlpha             float64
	MinTDEEMultiplier        float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinMeasurements:          nutrition.MinReverseRecords,
		WindowDays:               nutrition.ReverseWindowRecords,
		MinDaysBetweenUpdates:    7,
		SignificantChangePercent: 5,
		MinWeightDeltaKg:         0.15,
		DefaultAlpha:             plans.DefaultAlpha,
		MinTDEEMultiplier:        nutrition.SafetyFloorMultiplier,
	}
}

// Metadata describes the inputs behind an Estimate.
type Metadata struct {
	MeasurementsUsed    int     `json:"measurements_used"`
	Alpha               float64 `json:"alpha,omitempty"`
	PreviousTDEE        int     `json:"previous_tdee,omitempty"`
	TDEEMinimum         int     `json:"tdee_minimum,omitempty"`
	WasAdjusted         bool    `json:"was_adjusted"`
	WeightDeltaKg       float64 `json:"weight_delta_kg"`
	WindowStartWeightKg float64 `json:"window_start_weight_kg,omitempty"`
	WindowEndWeightKg   float64 `json:"window_end_weight_kg,omitempty"`
	ThresholdKg         float64 `json:"threshold_kg,omitempty"`
}

// Estimate is the tagged result of one estimation. Reason is empty when CanActivate is true.
type Estimate struct {
	CanActivate   bool     `json:"can_activate"`
	Reason        Reason   `json:"reason,omitempty"`
	Required      int      `json:"required,omitempty"`
	Current       int      `json:"current,omitempty"`
	TDEEAdaptive  int      `json:"tdee_adaptive,omitempty"`
	TDEERaw       int      `json:"tdee_raw,omitempty"`
	ChangePercent float64  `json:"change_percent"`
	Metadata      Metadata `json:"metadata"`
}

// Decision says whether an estimate should be applied to the plan.
type Decision struct {
	Accept          bool   `json:"accept"`
	Reason          Reason `json:"reason"`
	DaysSinceUpdate *int   `json:"days_since_update,omitempty"`
}

// Estimator runs the estimation gates. The zero value is not usable; call NewEstimator.
type Estimator struct {
	config Config
}

// NewEstimator returns an Estimator with the production thresholds.
func NewEstimator() Estimator {
	return Estimator{config: DefaultConfig()}
}

// Config returns the estimator thresholds.
func (e Estimator) Config() Config {
	return e.config
}

// Estimate reverse-engineers the TDEE from window, a newest-first series of weighed days
// with logged calories, and smooths it against the plan's baseline.
func (e Estimator) Estimate(plan plans.DietPlan, window []measurements.Measurement) Estimate {
	calorieDays := 0
	for _, record := range window {
		if record.HasCalories() {
			calorieDays++
		}
	}
	if calorieDays < e.config.MinMeasurements {
		return Estimate{
			Reason:   ReasonInsufficientData,
			Required: e.config.MinMeasurements,
			Current:  calorieDays,
			Metadata: Metadata{MeasurementsUsed: calorieDays},
		}
	}
	qualifying := nutrition.CalorieWindow(window)

	endWeight, startWeight := nutrition.EndpointWeights(qualifying)
	weightDelta := endWeight - startWeight
	weightMetadata := Metadata{
		MeasurementsUsed:    calorieDays,
		WeightDeltaKg:       stats.RoundTo(weightDelta, 3),
		WindowStartWeightKg: stats.RoundTo(startWeight, 1),
		WindowEndWeightKg:   stats.RoundTo(endWeight, 1),
	}
	if math.Abs(weightDelta) < e.config.MinWeightDeltaKg {
		weightMetadata.ThresholdKg = e.config.MinWeightDeltaKg
		return Estimate{Reason: ReasonWeightDeltaInsufficient, Metadata: weightMetadata}
	}

	tdeeRaw, ok := nutrition.ReverseTDEE(qualifying)
	if !ok || tdeeRaw <= 0 {
		return Estimate{Reason: ReasonCalculationFailed, Metadata: weightMetadata}
	}

	alpha := plan.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = e.config.DefaultAlpha
	}
	baseline := plan.BaselineTDEE()
	tdeeAdaptive := stats.RoundInt(alpha*float64(baseline) + (1-alpha)*float64(tdeeRaw))

	minimum := stats.RoundInt(float64(plan.BMRBaseKcal) * e.config.MinTDEEMultiplier)
	wasAdjusted := tdeeAdaptive < minimum
	if wasAdjusted {
		tdeeAdaptive = minimum
	}

	metadata := weightMetadata
	metadata.Alpha = alpha
	metadata.PreviousTDEE = baseline
	metadata.TDEEMinimum = minimum
	metadata.WasAdjusted = wasAdjusted
	return Estimate{
		CanActivate:   true,
		TDEEAdaptive:  tdeeAdaptive,
		TDEERaw:       tdeeRaw,
		ChangePercent: stats.RoundTo(stats.PercentChange(float64(baseline), float64(tdeeAdaptive)), 1),
		Metadata:      metadata,
	}
}

// ShouldUpdate decides whether estimate replaces the plan's TDEE at now. The first
// activation is always accepted; later updates respect the cooldown and need a
// significant change.
func (e Estimator) ShouldUpdate(plan plans.DietPlan, estimate Estimate, now time.Time) Decision {
	if !estimate.CanActivate {
		return Decision{Reason: estimate.Reason}
	}
	if !plan.AdaptiveEnabled {
		return Decision{Accept: true, Reason: ReasonFirstActivation}
	}
	var daysSince *int
	if last, ok := plan.LastAdaptiveUpdate(); ok {
		days := int(math.Floor(math.Abs(now.Sub(last).Hours()) / 24))
		daysSince = &days
		if days < e.config.MinDaysBetweenUpdates {
			return Decision{Reason: ReasonCooldownActive, DaysSinceUpdate: daysSince}
		}
	}
	if math.Abs(estimate.ChangePercent) < e.config.SignificantChangePercent {
		return Decision{Reason: ReasonChangeNotSignificant, DaysSinceUpdate: daysSince}
	}
	return Decision{Accept: true, Reason: ReasonSignificantChange, DaysSinceUpdate: daysSince}
}

// BuildUpdate derives the plan patch for an accepted estimate. The plan's deficit or
// surplus percent is kept, the target is floored at the BMR safety minimum and macros are
// recomputed from latest.
func (e Estimator) BuildUpdate(plan plans.DietPlan, estimate Estimate, latest measurements.Measurement, now time.Time) (plans.AdaptiveUpdate, error) {
	if !estimate.CanActivate || estimate.TDEEAdaptive <= 0 {
		return plans.AdaptiveUpdate{}, fmt.Errorf("%w: %s", ErrNotActionable, estimate.Reason)
	}
	if !latest.HasWeight() {
		return plans.AdaptiveUpdate{}, ErrNoMeasurementData
	}
	tdee := float64(estimate.TDEEAdaptive)
	target := stats.RoundInt(tdee * (1 + plan.DeficitSurplusPercent/100))
	minimum := stats.RoundInt(float64(plan.BMRBaseKcal) * e.config.MinTDEEMultiplier)
	final := max(target, minimum)

	macros, err := nutrition.MacroSplit(final, latest.WeightKg, latest.LeanMassKg, plan.Objective)
	if err != nil {
		return plans.AdaptiveUpdate{}, err
	}
	return plans.AdaptiveUpdate{
		TDEEAdaptive:          estimate.TDEEAdaptive,
		TDEERaw:               estimate.TDEERaw,
		CalorieTarget:         final,
		DeficitSurplusKcal:    final - estimate.TDEEAdaptive,
		DeficitSurplusPercent: stats.RoundTo(float64(final-estimate.TDEEAdaptive)/tdee*100, 1),
		Macros:                macros,
		AppliedAt:             now.UTC(),
	}, nil
}

// WindowStart returns the first day of the estimation window ending on now's UTC day.
func (e Estimator) WindowStart(now time.Time) time.Time {
	day := now.UTC().Truncate(24 * time.Hour)
	return day.AddDate(0, 0, -(e.config.WindowDays - 1))
}
