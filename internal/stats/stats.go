// Package stats holds the small numeric helpers shared by the calculators and analyzers.
package stats

import "math"

// Mean returns the arithmetic mean of values, or 0 when values is empty.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// Round returns the nearest integer with halves rounded toward positive infinity,
// so Round(-2.5) == -2 and Round(2.5) == 3.
func Round(value float64) float64 {
	return math.Floor(value + 0.5)
}

// RoundInt is Round converted to int.
func RoundInt(value float64) int {
	return int(Round(value))
}

// RoundTo rounds value to the given number of decimals using the Round rule.
func RoundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return Round(value*factor) / factor
}

// PercentChange returns the relative change from oldValue to newValue in percent.
// A zero oldValue yields 0.
func PercentChange(oldValue, newValue float64) float64 {
	if oldValue == 0 {
		return 0
	}
	return (newValue - oldValue) * 100 / oldValue
}

// Clamp bounds value to [minValue, maxValue].
func Clamp(value, minValue, maxValue float64) float64 {
	return math.Min(math.Max(value, minValue), maxValue)
}
