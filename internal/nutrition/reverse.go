package nutrition

import (
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

const (
	// KcalPerKg is the energy density used to convert weight change into kcal.
	KcalPerKg = 7700.0

	MinReverseRecords    = 10
	ReverseWindowRecords = 14
	endpointRecords      = 3
)

// ReverseTDEE estimates real expenditure from a newest-first series: the mean intake of
// the newest 14 records with logged calories, corrected by their weight change spread
// over 14 days. It reports false when fewer than 10 such records exist.
func ReverseTDEE(series []measurements.Measurement) (int, bool) {
	window := CalorieWindow(series)
	if len(window) < MinReverseRecords {
		return 0, false
	}
	intake := make([]float64, 0, len(window))
	for _, record := range window {
		intake = append(intake, float64(record.Calories()))
	}
	newest, oldest := EndpointWeights(window)
	dailyBalance := (newest - oldest) * KcalPerKg / ReverseWindowRecords
	return stats.RoundInt(stats.Mean(intake) + dailyBalance), true
}

// CalorieWindow keeps the newest 14 records with a positive logged intake.
func CalorieWindow(series []measurements.Measurement) []measurements.Measurement {
	window := make([]measurements.Measurement, 0, ReverseWindowRecords)
	for _, record := range series {
		if !record.HasCalories() {
			continue
		}
		window = append(window, record)
		if len(window) == ReverseWindowRecords {
			break
		}
	}
	return window
}

// EndpointWeights averages the weights of the newest and the oldest three records of a
// newest-first window.
func EndpointWeights(window []measurements.Measurement) (newest, oldest float64) {
	if len(window) == 0 {
		return 0, 0
	}
	count := min(endpointRecords, len(window))
	newestWeights := make([]float64, 0, count)
	oldestWeights := make([]float64, 0, count)
	for index := 0; index < count; index++ {
		newestWeights = append(newestWeights, window[index].WeightKg)
		oldestWeights = append(oldestWeights, window[len(window)-count+index].WeightKg)
	}
	return stats.Mean(newestWeights), stats.Mean(oldestWeights)
}
