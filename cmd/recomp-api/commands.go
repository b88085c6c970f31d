package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/cache"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/trends"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
	// analysisHeadroom matches the extra records the HTTP analysis endpoint fetches.
	analysisHeadroom = 5
)

var errUnknownOutput = errors.New("output must be json or yaml")

func newRecalculateCommand() *cobra.Command {
	var (
		userID string
		dryRun bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Run the adaptive TDEE estimator for one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			run := app.adaptive.Recalculate
			if dryRun {
				run = app.adaptive.DryRun
			}
			outcome, err := run(cmd.Context(), userID)
			if err != nil {
				return err
			}
			app.dropCachedTrends(cmd.Context(), userID, outcome, dryRun)
			return writeOutput(cmd.OutOrStdout(), output, recalculateReport(outcome, dryRun))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the update without persisting it")
	cmd.Flags().StringVar(&output, "output", outputJSON, "Output format (json, yaml)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// dropCachedTrends discards the user's cached analyses once a new calorie target was persisted.
func (a *application) dropCachedTrends(ctx context.Context, userID string, outcome adaptive.Outcome, dryRun bool) {
	if dryRun || !outcome.Updated || a.cache == nil {
		return
	}
	if err := a.cache.InvalidatePrefix(ctx, cache.UserTrendPrefix(userID)); err != nil {
		a.logger.Warn("trend cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

type recalculateSummary struct {
	UserID         string          `json:"user_id" yaml:"user_id"`
	DryRun         bool            `json:"dry_run" yaml:"dry_run"`
	AdaptiveActive bool            `json:"adaptive_active" yaml:"adaptive_active"`
	Updated        bool            `json:"updated" yaml:"updated"`
	Reason         adaptive.Reason `json:"reason" yaml:"reason"`
	PreviousTDEE   int             `json:"previous_tdee" yaml:"previous_tdee"`
	TDEERaw        int             `json:"tdee_raw,omitempty" yaml:"tdee_raw,omitempty"`
	TDEEAdaptive   int             `json:"tdee_adaptive,omitempty" yaml:"tdee_adaptive,omitempty"`
	ChangePercent  float64         `json:"change_percent" yaml:"change_percent"`
	CalorieTarget  int             `json:"calorie_target" yaml:"calorie_target"`
}

func recalculateReport(outcome adaptive.Outcome, dryRun bool) recalculateSummary {
	return recalculateSummary{
		UserID:         outcome.Plan.UserID,
		DryRun:         dryRun,
		AdaptiveActive: outcome.Estimate.CanActivate,
		Updated:        outcome.Updated,
		Reason:         outcome.Decision.Reason,
		PreviousTDEE:   outcome.PreviousTDEE,
		TDEERaw:        outcome.Estimate.TDEERaw,
		TDEEAdaptive:   outcome.Estimate.TDEEAdaptive,
		ChangePercent:  outcome.Estimate.ChangePercent,
		CalorieTarget:  outcome.Plan.CalorieTarget,
	}
}

func newAnalyzeCommand() *cobra.Command {
	var (
		userID    string
		days      int
		objective string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the body composition trend analysis of one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApplication(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var resolved nutrition.Objective
			if strings.TrimSpace(objective) != "" {
				if resolved, err = nutrition.ParseObjective(objective); err != nil {
					return err
				}
			} else {
				profile, err := app.profiles.Resolve(ctx, userID)
				if err != nil {
					return err
				}
				resolved = profile.Objective
			}
			if days <= 0 {
				days = trends.DefaultWindowDays
			}

			series, err := app.measurements.Recent(ctx, userID, days+analysisHeadroom)
			if err != nil {
				return err
			}
			var activePlan *plans.DietPlan
			plan, err := app.plans.Active(ctx, userID)
			switch {
			case err == nil:
				activePlan = &plan
			case !errors.Is(err, plans.ErrNoActivePlan):
				return err
			}

			analysis := trends.AnalyzeComplete(series, resolved, activePlan, days, time.Now())
			return writeOutput(cmd.OutOrStdout(), output, analysis)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User identifier")
	cmd.Flags().IntVar(&days, "days", trends.DefaultWindowDays, "Analysis window in records")
	cmd.Flags().StringVar(&objective, "objective", "", "Objective override (cutting, bulking, recomposition, maintenance)")
	cmd.Flags().StringVar(&output, "output", outputJSON, "Output format (json, yaml)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func writeOutput(writer io.Writer, format string, value any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case outputJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case outputYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("%w: %q", errUnknownOutput, format)
	}
}
