// Package trends turns a short window of measurements into weekly body-composition
// deltas, a traffic-light classification against the user's objective and a list of
// recommendations.
package trends

import (
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

const (
	// DefaultWindowDays is the analysis window used when the caller does not choose one.
	DefaultWindowDays = 7

	endpointRecords      = 3
	minTrendRecords      = 2
	minSufficientRecords = 3
)

// Field names a measurement series that can be trended.
type Field string

const (
	FieldWeight         Field = "weight_kg"
	FieldFatMass        Field = "fat_mass_kg"
	FieldLeanMass       Field = "lean_mass_kg"
	FieldBodyFatPercent Field = "body_fat_percent"
)

// Deltas are per-week rates of change over the analysis window.
type Deltas struct {
	WeightKg       float64 `json:"weight_kg" yaml:"weight_kg"`
	FatMassKg      float64 `json:"fat_mass_kg" yaml:"fat_mass_kg"`
	LeanMassKg     float64 `json:"lean_mass_kg" yaml:"lean_mass_kg"`
	BodyFatPercent float64 `json:"body_fat_percent" yaml:"body_fat_percent"`
	PeriodDays     int     `json:"period_days" yaml:"period_days"`
}

// Metrics describes the data behind an Analysis.
type Metrics struct {
	RecordsAnalysed   int     `json:"records_analysed" yaml:"records_analysed"`
	PeriodDays        int     `json:"period_days" yaml:"period_days"`
	SufficientData    bool    `json:"sufficient_data" yaml:"sufficient_data"`
	LatestMeasurement *string `json:"latest_measurement" yaml:"latest_measurement"`
}

// Analysis is the complete trend report for one user.
type Analysis struct {
	Situation       Classification   `json:"situation" yaml:"situation"`
	Deltas          *Deltas          `json:"deltas" yaml:"deltas"`
	Recommendations []Recommendation `json:"recommendations" yaml:"recommendations"`
	Metrics         Metrics          `json:"metrics" yaml:"metrics"`
	Timestamp       time.Time        `json:"timestamp" yaml:"timestamp"`
}

// WeeklyDelta compares the mean of the newest three values of field with the mean of the
// oldest three inside the first windowDays records of the newest-first series, and
// scales the difference to a seven-day rate. Missing values are skipped; fewer than two
// records in the window yield 0.
func WeeklyDelta(series []measurements.Measurement, field Field, windowDays int) float64 {
	window := head(series, windowDays)
	if len(window) < minTrendRecords {
		return 0
	}
	span := min(endpointRecords, len(window))
	newest := fieldValues(window[:span], field)
	oldest := fieldValues(window[len(window)-span:], field)
	if len(newest) == 0 || len(oldest) == 0 {
		return 0
	}
	delta := stats.Mean(newest) - stats.Mean(oldest)
	return stats.RoundTo(delta/float64(len(window))*7, 2)
}

// AnalyzeTrends computes the weekly deltas of every tracked field, or nil when the series
// holds fewer than two records.
func AnalyzeTrends(series []measurements.Measurement, days int) *Deltas {
	if len(series) < minTrendRecords {
		return nil
	}
	days = normalizeDays(days)
	return &Deltas{
		WeightKg:       WeeklyDelta(series, FieldWeight, days),
		FatMassKg:      WeeklyDelta(series, FieldFatMass, days),
		LeanMassKg:     WeeklyDelta(series, FieldLeanMass, days),
		BodyFatPercent: WeeklyDelta(series, FieldBodyFatPercent, days),
		PeriodDays:     days,
	}
}

// AnalyzeComplete classifies the series against objective and attaches recommendations.
// plan is optional and only used to suggest concrete calorie targets.
func AnalyzeComplete(series []measurements.Measurement, objective nutrition.Objective, plan *plans.DietPlan, days int, now time.Time) Analysis {
	days = normalizeDays(days)
	deltas := AnalyzeTrends(series, days)
	situation := Classify(deltas, objective)
	metrics := Metrics{
		RecordsAnalysed: len(head(series, days)),
		PeriodDays:      days,
		SufficientData:  len(series) >= minSufficientRecords,
	}
	if len(series) > 0 {
		latest := series[0].Day
		metrics.LatestMeasurement = &latest
	}
	return Analysis{
		Situation:       situation,
		Deltas:          deltas,
		Recommendations: Recommend(&situation, deltas, objective, plan),
		Metrics:         metrics,
		Timestamp:       now.UTC(),
	}
}

func normalizeDays(days int) int {
	if days <= 0 {
		return DefaultWindowDays
	}
	return days
}

func head(series []measurements.Measurement, count int) []measurements.Measurement {
	if count < 0 {
		count = 0
	}
	if len(series) <= count {
		return series
	}
	return series[:count]
}

func fieldValues(records []measurements.Measurement, field Field) []float64 {
	values := make([]float64, 0, len(records))
	for _, record := range records {
		var value *float64
		switch field {
		case FieldWeight:
			if record.HasWeight() {
				weight := record.WeightKg
				value = &weight
			}
		case FieldFatMass:
			value = record.FatMassKg
		case FieldLeanMass:
			value = record.LeanMassKg
		case FieldBodyFatPercent:
			value = record.BodyFatPercent
		}
		if value != nil {
			values = append(values, *value)
		}
	}
	return values
}
