package measurements

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/identifier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opStoreNew            = "measurements.store.new"
	opUpsert              = "measurements.upsert"
	opUpsertDailyCalories = "measurements.upsert_daily_calories"
	opList                = "measurements.list"
	opListSince           = "measurements.list_since"
	opCalorieHistory      = "measurements.calorie_history"
	opLatest              = "measurements.latest"
	opGet                 = "measurements.get"
	opDelete              = "measurements.delete"
	reasonMissingDatabase = "missing_database"
	reasonInvalidInput    = "invalid_input"
	reasonQueryFailed     = "query_failed"
	reasonSaveFailed      = "save_failed"
	reasonIDFailed        = "id_generation_failed"
	reasonNotFound        = "not_found"
	queryUserID           = "user_id = ?"
	queryUserDay          = "user_id = ? AND day = ?"
	queryUserMeasurement  = "user_id = ? AND measurement_id = ?"
	queryWeighed          = "weight_kg > 0"
	queryAnyIntake        = "calories_consumed_kcal > 0 OR breakfast_kcal > 0 OR lunch_kcal > 0 OR dinner_kcal > 0"
	orderDayDesc          = "day DESC"
	defaultListLimit      = 30
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errNoMeals           = errors.New("at least one meal must be specified")
	noOpLogger           = zap.NewNop()
)

// StoreConfig describes the dependencies of the measurement store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// Store persists measurements, one per user and day.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, faults.New(opStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, faults.New(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListFilter narrows List to an inclusive day range.
type ListFilter struct {
	FromDay string
	ToDay   string
	Limit   int
}

// Meals is the per-meal calorie breakdown of a day. Nil or non-positive meals are left untouched.
type Meals struct {
	BreakfastKcal *int
	LunchKcal     *int
	DinnerKcal    *int
	SnacksKcal    *int
}

// Total sums the positive meals.
func (m Meals) Total() int {
	total := 0
	for _, meal := range []*int{m.BreakfastKcal, m.LunchKcal, m.DinnerKcal, m.SnacksKcal} {
		if meal != nil && *meal > 0 {
			total += *meal
		}
	}
	return total
}

// DailyCalories is the meal view of one day. HasMealBreakdown is false when only a
// daily total was logged.
type DailyCalories struct {
	MeasurementID    string `json:"id,omitempty"`
	Day              string `json:"date"`
	BreakfastKcal    int    `json:"breakfast_kcal"`
	LunchKcal        int    `json:"lunch_kcal"`
	DinnerKcal       int    `json:"dinner_kcal"`
	SnacksKcal       int    `json:"snacks_kcal"`
	TotalKcal        int    `json:"total_kcal"`
	ProteinG         *int   `json:"protein_g,omitempty"`
	CarbG            *int   `json:"carb_g,omitempty"`
	FatG             *int   `json:"fat_g,omitempty"`
	HasMealBreakdown bool   `json:"has_meal_breakdown"`
}

func dailyCaloriesOf(measurement Measurement) DailyCalories {
	daily := DailyCalories{
		MeasurementID: measurement.ID,
		Day:           measurement.Day,
		BreakfastKcal: valueOrZero(measurement.BreakfastKcal),
		LunchKcal:     valueOrZero(measurement.LunchKcal),
		DinnerKcal:    valueOrZero(measurement.DinnerKcal),
		SnacksKcal:    valueOrZero(measurement.SnacksKcal),
		ProteinG:      measurement.ProteinG,
		CarbG:         measurement.CarbG,
		FatG:          measurement.FatG,
	}
	daily.HasMealBreakdown = daily.BreakfastKcal > 0 || daily.LunchKcal > 0 || daily.DinnerKcal > 0
	daily.TotalKcal = daily.BreakfastKcal + daily.LunchKcal + daily.DinnerKcal + daily.SnacksKcal
	if daily.TotalKcal == 0 {
		daily.TotalKcal = measurement.Calories()
	}
	return daily
}

// Upsert stores a scale reading, merging it into an existing record for the same day.
// The returned bool reports whether a new record was created.
func (s *Store) Upsert(ctx context.Context, incoming Measurement) (Measurement, bool, error) {
	if s.db == nil {
		return Measurement{}, false, faults.New(opUpsert, reasonMissingDatabase, errMissingDatabase)
	}
	userID, err := NormalizeUserID(incoming.UserID)
	if err != nil {
		return Measurement{}, false, faults.New(opUpsert, reasonInvalidInput, err)
	}
	incoming.UserID = userID
	incoming.Day = strings.TrimSpace(incoming.Day)
	if err := incoming.Validate(); err != nil {
		return Measurement{}, false, faults.New(opUpsert, reasonInvalidInput, err)
	}
	incoming = incoming.withDerivedFatMass()

	var stored Measurement
	created := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Measurement
		err := tx.Where(queryUserDay, userID, incoming.Day).
			Take(&existing).Error
		nowSeconds := s.clock().UTC().Unix()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := s.idProvider.NewID()
			if err != nil {
				return faults.New(opUpsert, reasonIDFailed, err)
			}
			stored = incoming
			stored.ID = id
			stored.CreatedAtSeconds = nowSeconds
			stored.UpdatedAtSeconds = nowSeconds
			created = true
		case err != nil:
			s.logError(opUpsert, reasonQueryFailed, err, zap.String("user_id", userID), zap.String("day", incoming.Day))
			return faults.New(opUpsert, reasonQueryFailed, err)
		default:
			stored = mergeMeasurement(existing, incoming)
			stored.UpdatedAtSeconds = nowSeconds
		}
		if err := tx.Save(&stored).Error; err != nil {
			s.logError(opUpsert, reasonSaveFailed, err, zap.String("user_id", userID), zap.String("day", incoming.Day))
			return faults.New(opUpsert, reasonSaveFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Measurement{}, false, txErr
	}
	return stored, created, nil
}

// UpsertDailyCalories records the meal breakdown for day. A day without a scale
// reading is created with a zero weight until the weigh-in arrives.
func (s *Store) UpsertDailyCalories(ctx context.Context, userID, day string, meals Meals) (Measurement, bool, error) {
	if s.db == nil {
		return Measurement{}, false, faults.New(opUpsertDailyCalories, reasonMissingDatabase, errMissingDatabase)
	}
	normalizedUser, err := NormalizeUserID(userID)
	if err != nil {
		return Measurement{}, false, faults.New(opUpsertDailyCalories, reasonInvalidInput, err)
	}
	parsedDay, err := ParseDay(day)
	if err != nil {
		return Measurement{}, false, faults.New(opUpsertDailyCalories, reasonInvalidInput, err)
	}
	total := meals.Total()
	if total == 0 {
		return Measurement{}, false, faults.New(opUpsertDailyCalories, reasonInvalidInput, errNoMeals)
	}
	dayKey := FormatDay(parsedDay)

	var stored Measurement
	created := false
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Measurement
		err := tx.Where(queryUserDay, normalizedUser, dayKey).
			Take(&existing).Error
		nowSeconds := s.clock().UTC().Unix()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := s.idProvider.NewID()
			if err != nil {
				return faults.New(opUpsertDailyCalories, reasonIDFailed, err)
			}
			stored = Measurement{
				ID:               id,
				UserID:           normalizedUser,
				Day:              dayKey,
				CreatedAtSeconds: nowSeconds,
			}
			created = true
		case err != nil:
			s.logError(opUpsertDailyCalories, reasonQueryFailed, err, zap.String("user_id", normalizedUser))
			return faults.New(opUpsertDailyCalories, reasonQueryFailed, err)
		default:
			stored = existing
		}
		stored.BreakfastKcal = positiveOr(meals.BreakfastKcal, stored.BreakfastKcal)
		stored.LunchKcal = positiveOr(meals.LunchKcal, stored.LunchKcal)
		stored.DinnerKcal = positiveOr(meals.DinnerKcal, stored.DinnerKcal)
		stored.SnacksKcal = positiveOr(meals.SnacksKcal, stored.SnacksKcal)
		stored.CaloriesConsumedKcal = &total
		stored.UpdatedAtSeconds = nowSeconds
		if err := tx.Save(&stored).Error; err != nil {
			s.logError(opUpsertDailyCalories, reasonSaveFailed, err, zap.String("user_id", normalizedUser))
			return faults.New(opUpsertDailyCalories, reasonSaveFailed, err)
		}
		return nil
	})
	if txErr != nil {
		return Measurement{}, false, txErr
	}
	return stored, created, nil
}

// Today returns the meal breakdown of the current UTC day, zeroed when nothing is logged.
func (s *Store) Today(ctx context.Context, userID string) (DailyCalories, error) {
	day := FormatDay(s.clock())
	measurement, err := s.findByDay(ctx, userID, day)
	if errors.Is(err, ErrNotFound) {
		return DailyCalories{Day: day}, nil
	}
	if err != nil {
		return DailyCalories{}, err
	}
	return dailyCaloriesOf(measurement), nil
}

// CalorieHistory returns the logged intake of every day since the given date, newest-first.
// Unweighed days are included.
func (s *Store) CalorieHistory(ctx context.Context, userID string, since time.Time) ([]DailyCalories, error) {
	if s.db == nil {
		return nil, faults.New(opCalorieHistory, reasonMissingDatabase, errMissingDatabase)
	}
	normalizedUser, err := NormalizeUserID(userID)
	if err != nil {
		return nil, faults.New(opCalorieHistory, reasonInvalidInput, err)
	}
	var records []Measurement
	err = s.db.WithContext(ctx).
		Where(queryUserID, normalizedUser).
		Where("day >= ?", FormatDay(since)).
		Where(queryAnyIntake).
		Order(orderDayDesc).
		Find(&records).Error
	if err != nil {
		s.logError(opCalorieHistory, reasonQueryFailed, err, zap.String("user_id", normalizedUser))
		return nil, faults.New(opCalorieHistory, reasonQueryFailed, err)
	}
	history := make([]DailyCalories, 0, len(records))
	for _, record := range records {
		history = append(history, dailyCaloriesOf(record))
	}
	return history, nil
}

// List returns a user's records newest-first, calorie-only days included.
func (s *Store) List(ctx context.Context, userID string, filter ListFilter) ([]Measurement, error) {
	if s.db == nil {
		return nil, faults.New(opList, reasonMissingDatabase, errMissingDatabase)
	}
	normalizedUser, err := NormalizeUserID(userID)
	if err != nil {
		return nil, faults.New(opList, reasonInvalidInput, err)
	}
	query := s.db.WithContext(ctx).Where(queryUserID, normalizedUser)
	if strings.TrimSpace(filter.FromDay) != "" {
		from, err := ParseDay(filter.FromDay)
		if err != nil {
			return nil, faults.New(opList, reasonInvalidInput, err)
		}
		query = query.Where("day >= ?", FormatDay(from))
	}
	if strings.TrimSpace(filter.ToDay) != "" {
		to, err := ParseDay(filter.ToDay)
		if err != nil {
			return nil, faults.New(opList, reasonInvalidInput, err)
		}
		query = query.Where("day <= ?", FormatDay(to))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var records []Measurement
	if err := query.Order(orderDayDesc).Limit(limit).Find(&records).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err, zap.String("user_id", normalizedUser))
		return nil, faults.New(opList, reasonQueryFailed, err)
	}
	return records, nil
}

// ListSince returns the weighed records on or after since, newest-first. With
// requireCalories only days with a positive logged intake are returned.
func (s *Store) ListSince(ctx context.Context, userID string, since time.Time, requireCalories bool) ([]Measurement, error) {
	if s.db == nil {
		return nil, faults.New(opListSince, reasonMissingDatabase, errMissingDatabase)
	}
	normalizedUser, err := NormalizeUserID(userID)
	if err != nil {
		return nil, faults.New(opListSince, reasonInvalidInput, err)
	}
	query := s.db.WithContext(ctx).
		Where(queryUserID, normalizedUser).
		Where(queryWeighed).
		Where("day >= ?", FormatDay(since))
	if requireCalories {
		query = query.Where("calories_consumed_kcal > 0")
	}
	var records []Measurement
	if err := query.Order(orderDayDesc).Find(&records).Error; err != nil {
		s.logError(opListSince, reasonQueryFailed, err, zap.String("user_id", normalizedUser))
		return nil, faults.New(opListSince, reasonQueryFailed, err)
	}
	return records, nil
}

// Recent returns up to limit weighed records, newest-first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Measurement, error) {
	if s.db == nil {
		return nil, faults.New(opList, reasonMissingDatabase, errMissingDatabase)
	}
	normalizedUser, err := NormalizeUserID(userID)
	if err != nil {
		return nil, faults.New(opList, reasonInvalidInput, err)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	var records []Measurement
	if err := s.db.WithContext(ctx).
		Where(queryUserID, normalizedUser).
		Where(queryWeighed).
		Order(orderDayDesc).
		Limit(limit).
		Find(&records).Error; err != nil {
		s.logError(opList, reasonQueryFailed, err, zap.String("user_id", normalizedUser))
		return nil, faults.New(opList, reasonQueryFailed, err)
	}
	return records, nil
}

// Latest returns the newest weighed record. ErrNotFound is wrapped when the user has none.
func (s *Store) Latest(ctx context.Context, userID string) (Measurement, error) {
	records, err := s.Recent(ctx, userID, 1)
	if err != nil {
		return Measurement{}, err
	}
	if len(records) == 0 {
		return Measurement{}, faults.New(opLatest, reasonNotFound, ErrNotFound)
	}
	return records[0], nil
}

// Get returns a single record owned by userID.
func (s *Store) Get(ctx context.Context, userID, measurementID string) (Measurement, error) {
	if s.db == nil {
		return Measurement{}, faults.New(opGet, reasonMissingDatabase, errMissingDatabase)
	}
	var record Measurement
	err := s.db.WithContext(ctx).
		Where(queryUserMeasurement, strings.TrimSpace(userID), strings.TrimSpace(measurementID)).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Measurement{}, faults.New(opGet, reasonNotFound, ErrNotFound)
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.String("measurement_id", measurementID))
		return Measurement{}, faults.New(opGet, reasonQueryFailed, err)
	}
	return record, nil
}

// Delete removes a record owned by userID.
func (s *Store) Delete(ctx context.Context, userID, measurementID string) error {
	if s.db == nil {
		return faults.New(opDelete, reasonMissingDatabase, errMissingDatabase)
	}
	result := s.db.WithContext(ctx).
		Where(queryUserMeasurement, strings.TrimSpace(userID), strings.TrimSpace(measurementID)).
		Delete(&Measurement{})
	if result.Error != nil {
		s.logError(opDelete, reasonQueryFailed, result.Error, zap.String("measurement_id", measurementID))
		return faults.New(opDelete, reasonQueryFailed, result.Error)
	}
	if result.RowsAffected == 0 {
		return faults.New(opDelete, reasonNotFound, ErrNotFound)
	}
	return nil
}

func (s *Store) findByDay(ctx context.Context, userID, day string) (Measurement, error) {
	if s.db == nil {
		return Measurement{}, faults.New(opGet, reasonMissingDatabase, errMissingDatabase)
	}
	var record Measurement
	err := s.db.WithContext(ctx).Where(queryUserDay, strings.TrimSpace(userID), day).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Measurement{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, reasonQueryFailed, err, zap.String("day", day))
		return Measurement{}, faults.New(opGet, reasonQueryFailed, err)
	}
	return record, nil
}

// mergeMeasurement overlays the populated fields of incoming on existing.
func mergeMeasurement(existing, incoming Measurement) Measurement {
	merged := existing
	if incoming.WeightKg > 0 {
		merged.WeightKg = incoming.WeightKg
	}
	merged.BodyFatPercent = overlay(incoming.BodyFatPercent, existing.BodyFatPercent)
	merged.LeanMassKg = overlay(incoming.LeanMassKg, existing.LeanMassKg)
	merged.MuscleMassKg = overlay(incoming.MuscleMassKg, existing.MuscleMassKg)
	merged.FatMassKg = overlay(incoming.FatMassKg, existing.FatMassKg)
	merged.BMI = overlay(incoming.BMI, existing.BMI)
	merged.BMRKcal = overlay(incoming.BMRKcal, existing.BMRKcal)
	merged.VisceralFat = overlay(incoming.VisceralFat, existing.VisceralFat)
	merged.WaterPercent = overlay(incoming.WaterPercent, existing.WaterPercent)
	merged.BoneMassKg = overlay(incoming.BoneMassKg, existing.BoneMassKg)
	merged.CaloriesConsumedKcal = overlay(incoming.CaloriesConsumedKcal, existing.CaloriesConsumedKcal)
	merged.BreakfastKcal = overlay(incoming.BreakfastKcal, existing.BreakfastKcal)
	merged.LunchKcal = overlay(incoming.LunchKcal, existing.LunchKcal)
	merged.DinnerKcal = overlay(incoming.DinnerKcal, existing.DinnerKcal)
	merged.SnacksKcal = overlay(incoming.SnacksKcal, existing.SnacksKcal)
	merged.ProteinG = overlay(incoming.ProteinG, existing.ProteinG)
	merged.CarbG = overlay(incoming.CarbG, existing.CarbG)
	merged.FatG = overlay(incoming.FatG, existing.FatG)
	merged.EnergyLevel = overlay(incoming.EnergyLevel, existing.EnergyLevel)
	merged.StressLevel = overlay(incoming.StressLevel, existing.StressLevel)
	merged.SleepHours = overlay(incoming.SleepHours, existing.SleepHours)
	if strings.TrimSpace(incoming.Notes) != "" {
		merged.Notes = incoming.Notes
	}
	// a direct calorie total replaces any meal breakdown it does not carry
	if incoming.CaloriesConsumedKcal != nil && !incoming.hasMeals() {
		merged.BreakfastKcal = nil
		merged.LunchKcal = nil
		merged.DinnerKcal = nil
		merged.SnacksKcal = nil
	}
	// a fresh weight with a carried-over body fat must not keep a stale fat mass
	if incoming.FatMassKg == nil && (incoming.WeightKg > 0 || incoming.BodyFatPercent != nil) {
		merged.FatMassKg = nil
	}
	return merged.withDerivedFatMass()
}

func overlay[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

func positiveOr(incoming, existing *int) *int {
	if incoming != nil && *incoming > 0 {
		return incoming
	}
	return existing
}

func valueOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger := s.logger
	if logger == nil {
		logger = noOpLogger
	}
	logger.Error("measurement store error", attrs...)
}
