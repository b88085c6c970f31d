package adaptive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"go.uber.org/zap"
)

const (
	opServiceNew  = "adaptive.service.new"
	opRecalculate = "adaptive.recalculate"
	opDryRun      = "adaptive.dry_run"

	reasonPlanLookupFailed   = "plan_lookup_failed"
	reasonMeasurementsFailed = "measurements_failed"
	reasonNoMeasurementData  = "no_measurement_data"
	reasonUpdateBuildFailed  = "update_build_failed"
	reasonPlanUpdateFailed   = "plan_update_failed"
)

// MeasurementSource supplies the measurement history the estimator reads.
type MeasurementSource interface {
	ListSince(ctx context.Context, userID string, since time.Time, requireCalories bool) ([]measurements.Measurement, error)
	Latest(ctx context.Context, userID string) (measurements.Measurement, error)
}

// PlanStore reads the active plan and applies accepted updates to it.
type PlanStore interface {
	Active(ctx context.Context, userID string) (plans.DietPlan, error)
	ApplyAdaptiveUpdate(ctx context.Context, userID, planID string, update plans.AdaptiveUpdate) (plans.DietPlan, error)
}

// AuditSink accepts append-only log entries.
type AuditSink interface {
	Append(ctx context.Context, entry UpdateLogEntry) error
}

// ServiceConfig describes the collaborators of the adaptive service.
type ServiceConfig struct {
	Measurements MeasurementSource
	Plans        PlanStore
	Audit        AuditSink
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Service runs estimator invocations against stored data, one at a time per user.
type Service struct {
	measurements MeasurementSource
	plans        PlanStore
	audit        AuditSink
	estimator    Estimator
	clock        func() time.Time
	logger       *zap.Logger
	userLocks    sync.Map
}

// Outcome is the result of one recalculation.
type Outcome struct {
	Plan         plans.DietPlan        `json:"plan"`
	PreviousTDEE int                   `json:"previous_tdee"`
	Estimate     Estimate              `json:"estimate"`
	Decision     Decision              `json:"decision"`
	Updated      bool                  `json:"updated"`
	Update       *plans.AdaptiveUpdate `json:"update,omitempty"`
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Measurements == nil {
		return nil, faults.New(opServiceNew, "missing_measurements", errors.New("measurement source is required"))
	}
	if cfg.Plans == nil {
		return nil, faults.New(opServiceNew, "missing_plans", errors.New("plan store is required"))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		measurements: cfg.Measurements,
		plans:        cfg.Plans,
		audit:        cfg.Audit,
		estimator:    NewEstimator(),
		clock:        clock,
		logger:       logger,
	}, nil
}

// Recalculate estimates the user's adaptive TDEE and applies it to the active plan when
// accepted. Every attempt against a loaded plan writes exactly one audit entry.
func (s *Service) Recalculate(ctx context.Context, userID string) (Outcome, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	now := s.clock().UTC()
	plan, err := s.plans.Active(ctx, userID)
	if err != nil {
		return Outcome{}, s.wrapPlanError(opRecalculate, err)
	}

	window, err := s.measurements.ListSince(ctx, userID, s.estimator.WindowStart(now), true)
	if err != nil {
		s.record(ctx, newLogEntry(plan, Estimate{}, Decision{}, false, FailureMeasurementSource, s.estimator.Config().WindowDays, err))
		s.logError(opRecalculate, reasonMeasurementsFailed, err, zap.String("user_id", userID))
		return Outcome{}, faults.New(opRecalculate, reasonMeasurementsFailed, err)
	}

	estimate := s.estimator.Estimate(plan, window)
	decision := s.estimator.ShouldUpdate(plan, estimate, now)
	outcome := Outcome{Plan: plan, PreviousTDEE: plan.BaselineTDEE(), Estimate: estimate, Decision: decision}
	windowDays := s.estimator.Config().WindowDays

	if !decision.Accept {
		s.record(ctx, newLogEntry(plan, estimate, decision, false, failureReason(estimate), windowDays, nil))
		return outcome, nil
	}

	latest, err := s.measurements.Latest(ctx, userID)
	if err != nil {
		s.record(ctx, newLogEntry(plan, estimate, decision, false, FailureNoMeasurementData, windowDays, err))
		if errors.Is(err, measurements.ErrNotFound) {
			return Outcome{}, faults.New(opRecalculate, reasonNoMeasurementData, ErrNoMeasurementData)
		}
		s.logError(opRecalculate, reasonMeasurementsFailed, err, zap.String("user_id", userID))
		return Outcome{}, faults.New(opRecalculate, reasonMeasurementsFailed, err)
	}

	update, err := s.estimator.BuildUpdate(plan, estimate, latest, now)
	if err != nil {
		failure := FailurePlanUpdate
		reason := reasonUpdateBuildFailed
		if errors.Is(err, ErrNoMeasurementData) {
			failure = FailureNoMeasurementData
			reason = reasonNoMeasurementData
		}
		s.record(ctx, newLogEntry(plan, estimate, decision, false, failure, windowDays, err))
		return Outcome{}, faults.New(opRecalculate, reason, err)
	}

	updated, err := s.plans.ApplyAdaptiveUpdate(ctx, userID, plan.ID, update)
	if err != nil {
		s.record(ctx, newLogEntry(plan, estimate, decision, false, FailurePlanUpdate, windowDays, err))
		s.logError(opRecalculate, reasonPlanUpdateFailed, err, zap.String("user_id", userID), zap.String("plan_id", plan.ID))
		return Outcome{}, faults.New(opRecalculate, reasonPlanUpdateFailed, err)
	}

	s.record(ctx, newLogEntry(plan, estimate, decision, true, "", windowDays, nil))
	s.logger.Info("adaptive tdee applied",
		zap.String("user_id", userID),
		zap.String("plan_id", plan.ID),
		zap.Int("tdee_previous", outcome.PreviousTDEE),
		zap.Int("tdee_adaptive", estimate.TDEEAdaptive),
		zap.Int("tdee_raw", estimate.TDEERaw),
		zap.Float64("change_percent", estimate.ChangePercent),
		zap.String("decision", string(decision.Reason)),
	)
	outcome.Plan = updated
	outcome.Updated = true
	outcome.Update = &update
	return outcome, nil
}

// DryRun runs the estimator and the update decision without persisting anything.
func (s *Service) DryRun(ctx context.Context, userID string) (Outcome, error) {
	now := s.clock().UTC()
	plan, err := s.plans.Active(ctx, userID)
	if err != nil {
		return Outcome{}, s.wrapPlanError(opDryRun, err)
	}
	window, err := s.measurements.ListSince(ctx, userID, s.estimator.WindowStart(now), true)
	if err != nil {
		return Outcome{}, faults.New(opDryRun, reasonMeasurementsFailed, err)
	}
	estimate := s.estimator.Estimate(plan, window)
	decision := s.estimator.ShouldUpdate(plan, estimate, now)
	outcome := Outcome{Plan: plan, PreviousTDEE: plan.BaselineTDEE(), Estimate: estimate, Decision: decision}
	if !decision.Accept {
		return outcome, nil
	}
	latest, err := s.measurements.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, measurements.ErrNotFound) {
			return Outcome{}, faults.New(opDryRun, reasonNoMeasurementData, ErrNoMeasurementData)
		}
		return Outcome{}, faults.New(opDryRun, reasonMeasurementsFailed, err)
	}
	update, err := s.estimator.BuildUpdate(plan, estimate, latest, now)
	if err != nil {
		return Outcome{}, faults.New(opDryRun, reasonUpdateBuildFailed, err)
	}
	outcome.Update = &update
	outcome.Plan = update.Apply(plan)
	return outcome, nil
}

// failureReason maps a rejected attempt onto the audit vocabulary: estimate gates keep
// their reason and both decision rejections are recorded as change_not_significant.
func failureReason(estimate Estimate) string {
	if !estimate.CanActivate {
		return string(estimate.Reason)
	}
	return string(ReasonChangeNotSignificant)
}

func (s *Service) record(ctx context.Context, entry UpdateLogEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("tdee audit entry dropped",
			zap.String("user_id", entry.UserID),
			zap.String("plan_id", entry.PlanID),
			zap.Bool("updated", entry.Updated),
			zap.Error(err),
		)
	}
}

func (s *Service) wrapPlanError(operation string, err error) error {
	if errors.Is(err, plans.ErrNoActivePlan) {
		return err
	}
	s.logError(operation, reasonPlanLookupFailed, err)
	return faults.New(operation, reasonPlanLookupFailed, err)
}

func (s *Service) lockUser(userID string) func() {
	value, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("adaptive service error", attrs...)
}
