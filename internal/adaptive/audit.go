package adaptive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/identifier"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	opAuditNew            = "adaptive.audit.new"
	opAuditAppend         = "adaptive.audit.append"
	opAuditList           = "adaptive.audit.list"
	defaultAuditListLimit = 50
)

// Failure reasons recorded for attempts that stop after the plan was loaded.
const (
	FailureMeasurementSource = "measurement_source_failed"
	FailureNoMeasurementData = "no_measurement_data"
	FailurePlanUpdate        = "plan_update_failed"
)

// UpdateLogEntry is the audit record of one recalculation attempt.
type UpdateLogEntry struct {
	ID                string         `gorm:"column:entry_id;primaryKey;size:64;not null" json:"id"`
	UserID            string         `gorm:"column:user_id;size:190;not null;index:idx_tdee_update_logs_user_created,priority:1" json:"user_id"`
	PlanID            string         `gorm:"column:plan_id;size:64;not null;index" json:"plan_id"`
	CreatedAtSeconds  int64          `gorm:"column:created_at_s;not null;index:idx_tdee_update_logs_user_created,priority:2" json:"created_at_s"`
	TDEEPrevious      *int           `gorm:"column:tdee_previous" json:"tdee_previous"`
	TDEERaw           *int           `gorm:"column:tdee_raw" json:"tdee_raw"`
	TDEENew           *int           `gorm:"column:tdee_new" json:"tdee_new"`
	WeightDeltaKg     *float64       `gorm:"column:weight_delta_kg" json:"weight_delta_kg"`
	WindowDays        int            `gorm:"column:window_days;not null" json:"window_days"`
	MeasurementsCount int            `gorm:"column:measurements_count;not null" json:"measurements_count"`
	ChangePercent     *float64       `gorm:"column:change_percent" json:"change_percent"`
	Updated           bool           `gorm:"column:updated;not null" json:"updated"`
	FailureReason     *string        `gorm:"column:failure_reason;size:64" json:"failure_reason"`
	Alpha             float64        `gorm:"column:alpha;not null" json:"alpha"`
	Metadata          datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

// TableName provides the explicit table binding for GORM.
func (UpdateLogEntry) TableName() string {
	return "tdee_update_logs"
}

type entryMetadata struct {
	DecisionReason  Reason   `json:"decision_reason,omitempty"`
	DaysSinceUpdate *int     `json:"days_since_update,omitempty"`
	Estimate        Metadata `json:"estimate"`
	Error           string   `json:"error,omitempty"`
}

// newLogEntry records an attempt against plan as it was before the attempt.
func newLogEntry(plan plans.DietPlan, estimate Estimate, decision Decision, updated bool, failure string, windowDays int, cause error) UpdateLogEntry {
	entry := UpdateLogEntry{
		UserID:            plan.UserID,
		PlanID:            plan.ID,
		WindowDays:        windowDays,
		MeasurementsCount: estimate.Metadata.MeasurementsUsed,
		Updated:           updated,
		Alpha:             estimate.Metadata.Alpha,
	}
	if entry.Alpha == 0 {
		entry.Alpha = plan.SmoothingAlpha()
	}
	if plan.AdaptiveEnabled && plan.TDEEAdaptive != nil && *plan.TDEEAdaptive > 0 {
		previous := *plan.TDEEAdaptive
		entry.TDEEPrevious = &previous
	}
	if estimate.TDEERaw > 0 {
		raw := estimate.TDEERaw
		entry.TDEERaw = &raw
	}
	if updated {
		next := estimate.TDEEAdaptive
		entry.TDEENew = &next
	}
	if estimate.Reason != ReasonInsufficientData {
		delta := estimate.Metadata.WeightDeltaKg
		entry.WeightDeltaKg = &delta
	}
	if estimate.CanActivate {
		change := estimate.ChangePercent
		entry.ChangePercent = &change
	}
	if failure != "" {
		entry.FailureReason = &failure
	}
	metadata := entryMetadata{
		DecisionReason:  decision.Reason,
		DaysSinceUpdate: decision.DaysSinceUpdate,
		Estimate:        estimate.Metadata,
	}
	if cause != nil {
		metadata.Error = cause.Error()
	}
	if payload, err := json.Marshal(metadata); err == nil {
		entry.Metadata = datatypes.JSON(payload)
	}
	return entry
}

// AuditLogConfig describes the dependencies of the audit log.
type AuditLogConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifier.Provider
	Logger     *zap.Logger
}

// AuditLog is the gorm-backed, append-only store of update attempts.
type AuditLog struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifier.Provider
	logger     *zap.Logger
}

// NewAuditLog validates the configuration and returns an AuditLog.
func NewAuditLog(cfg AuditLogConfig) (*AuditLog, error) {
	if cfg.Database == nil {
		return nil, faults.New(opAuditNew, "missing_database", errors.New("database handle is required"))
	}
	if cfg.IDProvider == nil {
		return nil, faults.New(opAuditNew, "missing_id_provider", errors.New("id provider is required"))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLog{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Append stores entry, assigning its identifier and timestamp when unset.
func (l *AuditLog) Append(ctx context.Context, entry UpdateLogEntry) error {
	if entry.ID == "" {
		id, err := l.idProvider.NewID()
		if err != nil {
			return faults.New(opAuditAppend, "id_generation_failed", err)
		}
		entry.ID = id
	}
	if entry.CreatedAtSeconds == 0 {
		entry.CreatedAtSeconds = l.clock().UTC().Unix()
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return faults.New(opAuditAppend, "save_failed", err)
	}
	return nil
}

// List returns the user's most recent entries, newest-first.
func (l *AuditLog) List(ctx context.Context, userID string, limit int) ([]UpdateLogEntry, error) {
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	var entries []UpdateLogEntry
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at_s DESC").
		Order("entry_id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		l.logger.Error("audit log query failed", zap.String("operation", opAuditList), zap.String("user_id", userID), zap.Error(err))
		return nil, faults.New(opAuditList, "query_failed", err)
	}
	return entries, nil
}
