package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillFatMass  = "2026-06-01_backfill_fat_mass"
	migrationSingleActivePlan = "2026-06-15_single_active_plan"
	backfillBatchSize         = 200
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&measurements.Measurement{},
		&plans.DietPlan{},
		&plans.WorkoutPlan{},
		&adaptive.UpdateLogEntry{},
		&users.Profile{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillFatMass, apply: backfillFatMass},
		{name: migrationSingleActivePlan, apply: deactivateSupersededPlans},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillFatMass derives fat mass for weighed rows imported before it was stored.
func backfillFatMass(db *gorm.DB) error {
	var pending []measurements.Measurement
	return db.Model(&measurements.Measurement{}).
		Where("fat_mass_kg IS NULL AND body_fat_percent IS NOT NULL AND weight_kg > 0").
		FindInBatches(&pending, backfillBatchSize, func(tx *gorm.DB, _ int) error {
			for _, record := range pending {
				fatMass := stats.RoundTo(record.WeightKg*(*record.BodyFatPercent)/100, 1)
				if err := tx.Model(&measurements.Measurement{}).
					Where("measurement_id = ?", record.ID).
					Update("fat_mass_kg", fatMass).Error; err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// deactivateSupersededPlans keeps only the newest active plan per user.
func deactivateSupersededPlans(db *gorm.DB) error {
	var active []plans.DietPlan
	if err := db.Where("is_active = ?", true).
		Order("user_id ASC").
		Order("created_at_s DESC").
		Order("plan_id DESC").
		Find(&active).Error; err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(active))
	for _, plan := range active {
		if _, ok := seen[plan.UserID]; !ok {
			seen[plan.UserID] = struct{}{}
			continue
		}
		if err := db.Model(&plans.DietPlan{}).
			Where("plan_id = ?", plan.ID).
			Update("is_active", false).Error; err != nil {
			return err
		}
	}
	return nil
}
