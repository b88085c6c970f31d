package measurements

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

// DayLayout is the storage and wire format of a measurement day.
const DayLayout = "2006-01-02"

const maxIdentifierLength = 190

var (
	// ErrInvalidMeasurement indicates a field outside its physiological bounds.
	ErrInvalidMeasurement = errors.New("measurements: invalid measurement")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("measurements: invalid user id")
	// ErrInvalidDay indicates a day that is not YYYY-MM-DD.
	ErrInvalidDay = errors.New("measurements: invalid day")
	// ErrNotFound indicates that no measurement matched the lookup.
	ErrNotFound = errors.New("measurements: not found")
)

// Measurement is one user's body-composition and intake record for a calendar day.
// A zero WeightKg marks a calorie-only day that has not been weighed yet.
type Measurement struct {
	ID     string `gorm:"column:measurement_id;primaryKey;size:64;not null" json:"id"`
	UserID string `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_measurements_user_day,priority:1" json:"user_id"`
	Day    string `gorm:"column:day;size:10;not null;uniqueIndex:idx_measurements_user_day,priority:2;index" json:"date"`

	WeightKg       float64  `gorm:"column:weight_kg;not null;default:0" json:"weight_kg"`
	BodyFatPercent *float64 `gorm:"column:body_fat_percent" json:"body_fat_percent,omitempty"`
	LeanMassKg     *float64 `gorm:"column:lean_mass_kg" json:"lean_mass_kg,omitempty"`
	MuscleMassKg   *float64 `gorm:"column:muscle_mass_kg" json:"muscle_mass_kg,omitempty"`
	FatMassKg      *float64 `gorm:"column:fat_mass_kg" json:"fat_mass_kg,omitempty"`
	BMI            *float64 `gorm:"column:bmi" json:"bmi,omitempty"`
	BMRKcal        *int     `gorm:"column:bmr_kcal;index" json:"bmr_kcal,omitempty"`
	VisceralFat    *int     `gorm:"column:visceral_fat" json:"visceral_fat,omitempty"`
	WaterPercent   *float64 `gorm:"column:water_percent" json:"water_percent,omitempty"`
	BoneMassKg     *float64 `gorm:"column:bone_mass_kg" json:"bone_mass_kg,omitempty"`

	CaloriesConsumedKcal *int `gorm:"column:calories_consumed_kcal" json:"calories_consumed_kcal,omitempty"`
	BreakfastKcal        *int `gorm:"column:breakfast_kcal" json:"breakfast_kcal,omitempty"`
	LunchKcal            *int `gorm:"column:lunch_kcal" json:"lunch_kcal,omitempty"`
	DinnerKcal           *int `gorm:"column:dinner_kcal" json:"dinner_kcal,omitempty"`
	SnacksKcal           *int `gorm:"column:snacks_kcal" json:"snacks_kcal,omitempty"`
	ProteinG             *int `gorm:"column:protein_g" json:"protein_g,omitempty"`
	CarbG                *int `gorm:"column:carb_g" json:"carb_g,omitempty"`
	FatG                 *int `gorm:"column:fat_g" json:"fat_g,omitempty"`

	EnergyLevel *int     `gorm:"column:energy_level" json:"energy_level,omitempty"`
	StressLevel *int     `gorm:"column:stress_level" json:"stress_level,omitempty"`
	SleepHours  *float64 `gorm:"column:sleep_hours" json:"sleep_hours,omitempty"`
	Notes       string   `gorm:"column:notes;type:text;not null;default:''" json:"notes,omitempty"`

	CreatedAtSeconds int64 `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedAtSeconds int64 `gorm:"column:updated_at_s;not null" json:"updated_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Measurement) TableName() string {
	return "measurements"
}

// Date parses Day into a UTC midnight timestamp.
func (m Measurement) Date() (time.Time, error) {
	return ParseDay(m.Day)
}

// HasWeight reports whether the record carries a scale reading.
func (m Measurement) HasWeight() bool {
	return m.WeightKg > 0
}

// HasCalories reports whether a positive intake was logged for the day.
func (m Measurement) HasCalories() bool {
	return m.CaloriesConsumedKcal != nil && *m.CaloriesConsumedKcal > 0
}

func (m Measurement) hasMeals() bool {
	return m.BreakfastKcal != nil || m.LunchKcal != nil || m.DinnerKcal != nil || m.SnacksKcal != nil
}

// Calories returns the logged intake, or 0.
func (m Measurement) Calories() int {
	if m.CaloriesConsumedKcal == nil {
		return 0
	}
	return *m.CaloriesConsumedKcal
}

// Validate checks the physiological bounds of every populated field.
func (m Measurement) Validate() error {
	if _, err := NormalizeUserID(m.UserID); err != nil {
		return err
	}
	if _, err := ParseDay(m.Day); err != nil {
		return err
	}
	if m.WeightKg < 30 || m.WeightKg > 300 {
		return fmt.Errorf("%w: weight_kg %.1f outside [30, 300]", ErrInvalidMeasurement, m.WeightKg)
	}
	checks := []struct {
		name     string
		value    *float64
		min, max float64
	}{
		{name: "body_fat_percent", value: m.BodyFatPercent, min: 3, max: 60},
		{name: "lean_mass_kg", value: m.LeanMassKg, min: 20, max: 200},
		{name: "sleep_hours", value: m.SleepHours, min: 0, max: 24},
		{name: "water_percent", value: m.WaterPercent, min: 0, max: 100},
	}
	for _, check := range checks {
		if check.value != nil && (*check.value < check.min || *check.value > check.max) {
			return fmt.Errorf("%w: %s %.1f outside [%g, %g]", ErrInvalidMeasurement, check.name, *check.value, check.min, check.max)
		}
	}
	intChecks := []struct {
		name     string
		value    *int
		min, max int
	}{
		{name: "visceral_fat", value: m.VisceralFat, min: 1, max: 59},
		{name: "energy_level", value: m.EnergyLevel, min: 1, max: 5},
		{name: "stress_level", value: m.StressLevel, min: 1, max: 5},
		{name: "calories_consumed_kcal", value: m.CaloriesConsumedKcal, min: 0, max: 20000},
		{name: "bmr_kcal", value: m.BMRKcal, min: 0, max: 10000},
	}
	for _, check := range intChecks {
		if check.value != nil && (*check.value < check.min || *check.value > check.max) {
			return fmt.Errorf("%w: %s %d outside [%d, %d]", ErrInvalidMeasurement, check.name, *check.value, check.min, check.max)
		}
	}
	return nil
}

// withDerivedFatMass fills FatMassKg from weight and body fat when the scale did not report it.
func (m Measurement) withDerivedFatMass() Measurement {
	if m.FatMassKg != nil || m.BodyFatPercent == nil || m.WeightKg <= 0 {
		return m
	}
	fatMass := stats.RoundTo(m.WeightKg*(*m.BodyFatPercent/100), 1)
	m.FatMassKg = &fatMass
	return m
}

// NormalizeUserID trims and bounds-checks a user identifier.
func NormalizeUserID(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return trimmed, nil
}

// ParseDay parses a YYYY-MM-DD day.
func ParseDay(value string) (time.Time, error) {
	parsed, err := time.Parse(DayLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, value)
	}
	return parsed, nil
}

// FormatDay renders the UTC calendar day of t.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
