package measurements

import "github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"

// WeightTrend labels the direction of the weight change over a summary period.
type WeightTrend string

const (
	WeightTrendUp     WeightTrend = "up"
	WeightTrendDown   WeightTrend = "down"
	WeightTrendStable WeightTrend = "stable"
)

const weightTrendThresholdKg = 0.2

// SummaryValues groups the body-composition figures reported by a Summary.
type SummaryValues struct {
	WeightKg       float64 `json:"weight_kg"`
	BodyFatPercent float64 `json:"body_fat_percent"`
	LeanMassKg     float64 `json:"lean_mass_kg"`
	FatMassKg      float64 `json:"fat_mass_kg"`
	BMRKcal        int     `json:"bmr_kcal"`
}

// Summary aggregates a period of measurements.
type Summary struct {
	Count    int           `json:"measurements_count"`
	Latest   *Measurement  `json:"latest,omitempty"`
	Averages SummaryValues `json:"averages"`
	Deltas   SummaryValues `json:"deltas"`
	Trend    WeightTrend   `json:"trend"`
}

// Summarize averages a newest-first series and compares its newest record with its
// oldest. Averages skip absent optional values; deltas treat them as zero.
func Summarize(series []Measurement) Summary {
	if len(series) == 0 {
		return Summary{Trend: WeightTrendStable}
	}
	var weights, bodyFat, leanMass, fatMass, bmr []float64
	for _, record := range series {
		weights = append(weights, record.WeightKg)
		bodyFat = appendPresent(bodyFat, record.BodyFatPercent)
		leanMass = appendPresent(leanMass, record.LeanMassKg)
		fatMass = appendPresent(fatMass, record.FatMassKg)
		if record.BMRKcal != nil && *record.BMRKcal > 0 {
			bmr = append(bmr, float64(*record.BMRKcal))
		}
	}
	latest := series[0]
	oldest := series[len(series)-1]
	weightDelta := latest.WeightKg - oldest.WeightKg

	summary := Summary{
		Count:  len(series),
		Latest: &latest,
		Averages: SummaryValues{
			WeightKg:       stats.RoundTo(stats.Mean(weights), 1),
			BodyFatPercent: stats.RoundTo(stats.Mean(bodyFat), 1),
			LeanMassKg:     stats.RoundTo(stats.Mean(leanMass), 1),
			FatMassKg:      stats.RoundTo(stats.Mean(fatMass), 1),
			BMRKcal:        stats.RoundInt(stats.Mean(bmr)),
		},
		Deltas: SummaryValues{
			WeightKg:       stats.RoundTo(weightDelta, 1),
			BodyFatPercent: stats.RoundTo(floatOrZero(latest.BodyFatPercent)-floatOrZero(oldest.BodyFatPercent), 1),
			LeanMassKg:     stats.RoundTo(floatOrZero(latest.LeanMassKg)-floatOrZero(oldest.LeanMassKg), 1),
			FatMassKg:      stats.RoundTo(floatOrZero(latest.FatMassKg)-floatOrZero(oldest.FatMassKg), 1),
			BMRKcal:        valueOrZero(latest.BMRKcal) - valueOrZero(oldest.BMRKcal),
		},
		Trend: WeightTrendStable,
	}
	switch {
	case weightDelta > weightTrendThresholdKg:
		summary.Trend = WeightTrendUp
	case weightDelta < -weightTrendThresholdKg:
		summary.Trend = WeightTrendDown
	}
	return summary
}

func appendPresent(values []float64, value *float64) []float64 {
	if value == nil || *value == 0 {
		return values
	}
	return append(values, *value)
}

func floatOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
