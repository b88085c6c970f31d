package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	defaultTDEELogLimit = 50
	maxHistoryLimit     = 200
)

const (
	planTypeDiet    = "diet"
	planTypeWorkout = "workout"
	planTypeAll     = "all"
)

// planType reads the type filter of the plan endpoints. Without one the diet plan is served.
func planType(c *gin.Context) (string, bool) {
	switch value := strings.ToLower(strings.TrimSpace(c.Query("type"))); value {
	case "", planTypeDiet:
		return planTypeDiet, true
	case planTypeWorkout, planTypeAll:
		return value, true
	default:
		return "", false
	}
}

func (h *httpHandler) handleCurrentPlan(c *gin.Context) {
	kind, ok := planType(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_type"})
		return
	}
	ctx := c.Request.Context()
	switch kind {
	case planTypeDiet:
		plan, err := h.plans.Active(ctx, userID(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	case planTypeWorkout:
		plan, err := h.plans.ActiveWorkout(ctx, userID(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	default:
		var current struct {
			DietPlan    *plans.DietPlan    `json:"diet_plan"`
			WorkoutPlan *plans.WorkoutPlan `json:"workout_plan"`
		}
		diet, err := h.plans.Active(ctx, userID(c))
		switch {
		case err == nil:
			current.DietPlan = &diet
		case !errors.Is(err, plans.ErrNoActivePlan):
			h.respondError(c, err)
			return
		}
		workout, err := h.plans.ActiveWorkout(ctx, userID(c))
		switch {
		case err == nil:
			current.WorkoutPlan = &workout
		case !errors.Is(err, plans.ErrNoActiveWorkoutPlan):
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, current)
	}
}

func (h *httpHandler) handlePlanHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultHistoryLimit, maxHistoryLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
		return
	}
	kind, ok := planType(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_type"})
		return
	}
	ctx := c.Request.Context()
	var (
		dietHistory    []plans.DietPlan
		workoutHistory []plans.WorkoutPlan
		err            error
	)
	if kind != planTypeWorkout {
		if dietHistory, err = h.plans.History(ctx, userID(c), limit); err != nil {
			h.respondError(c, err)
			return
		}
	}
	if kind != planTypeDiet {
		if workoutHistory, err = h.plans.WorkoutHistory(ctx, userID(c), limit); err != nil {
			h.respondError(c, err)
			return
		}
	}
	switch kind {
	case planTypeDiet:
		c.JSON(http.StatusOK, gin.H{"plans": dietHistory, "count": len(dietHistory)})
	case planTypeWorkout:
		c.JSON(http.StatusOK, gin.H{"plans": workoutHistory, "count": len(workoutHistory)})
	default:
		c.JSON(http.StatusOK, gin.H{"diet_plans": dietHistory, "workout_plans": workoutHistory})
	}
}

type workoutPlanRequest struct {
	StartDate       string `json:"start_date"`
	SessionsPerWeek *int   `json:"sessions_per_week"`
	Intensity       string `json:"intensity"`
	Focus           string `json:"focus"`
	WeeklySets      *int   `json:"weekly_sets"`
	SplitType       string `json:"split_type"`
	RestDays        *int   `json:"rest_days"`
	CardioSessions  *int   `json:"cardio_sessions"`
	CardioType      string `json:"cardio_type"`
	CardioMinutes   *int   `json:"cardio_minutes"`
	Strategy        string `json:"strategy"`
	Notes           string `json:"notes"`
}

func (h *httpHandler) handleCreateWorkoutPlan(c *gin.Context) {
	var request workoutPlanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	plan, err := h.plans.CreateWorkout(c.Request.Context(), plans.WorkoutPlan{
		UserID:          userID(c),
		StartDay:        request.StartDate,
		SessionsPerWeek: request.SessionsPerWeek,
		Intensity:       plans.WorkoutIntensity(strings.ToLower(strings.TrimSpace(request.Intensity))),
		Focus:           plans.WorkoutFocus(strings.ToLower(strings.TrimSpace(request.Focus))),
		WeeklySets:      request.WeeklySets,
		SplitType:       strings.TrimSpace(request.SplitType),
		RestDays:        request.RestDays,
		CardioSessions:  request.CardioSessions,
		CardioType:      strings.TrimSpace(request.CardioType),
		CardioMinutes:   request.CardioMinutes,
		Strategy:        request.Strategy,
		Notes:           request.Notes,
		CreatedBy:       plans.CreatedByUser,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

type manualTargetsPayload struct {
	CalorieTarget int    `json:"calorie_target"`
	ProteinG      int    `json:"protein_g"`
	CarbG         int    `json:"carb_g"`
	FatG          int    `json:"fat_g"`
	Strategy      string `json:"strategy"`
}

type dietPlanRequest struct {
	Objective          string                `json:"objective"`
	Intensity          string                `json:"intensity"`
	ActivityLevel      string                `json:"activity_level"`
	WorkoutsPerWeek    *int                  `json:"workouts_per_week"`
	CaloriesPerSession *int                  `json:"calories_per_session"`
	Manual             *manualTargetsPayload `json:"manual"`
	Notes              string                `json:"notes"`
}

type dietPlanResponse struct {
	Plan    plans.DietPlan        `json:"plan"`
	Targets nutrition.PlanTargets `json:"targets"`
}

// handleGenerateDietPlan builds a plan from the BMR of the latest weighed measurement and
// makes it the user's active plan.
func (h *httpHandler) handleGenerateDietPlan(c *gin.Context) {
	var request dietPlanRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	ctx := c.Request.Context()

	profile, err := h.profiles.Resolve(ctx, userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	objective := profile.Objective
	if strings.TrimSpace(request.Objective) != "" {
		if objective, err = nutrition.ParseObjective(request.Objective); err != nil {
			h.respondError(c, err)
			return
		}
	}
	activityLevel := profile.ActivityLevel
	if strings.TrimSpace(request.ActivityLevel) != "" {
		if activityLevel, err = nutrition.ParseActivityLevel(request.ActivityLevel); err != nil {
			h.respondError(c, err)
			return
		}
	}

	latest, err := h.measurements.Latest(ctx, userID(c))
	if errors.Is(err, measurements.ErrNotFound) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no_measurement_data"})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if latest.BMRKcal == nil || *latest.BMRKcal <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "missing_bmr"})
		return
	}

	input := nutrition.PlanInput{
		BMRKcal:            *latest.BMRKcal,
		WeightKg:           latest.WeightKg,
		LeanMassKg:         latest.LeanMassKg,
		Objective:          objective,
		Intensity:          nutrition.Intensity(strings.ToLower(strings.TrimSpace(request.Intensity))),
		ActivityLevel:      activityLevel,
		WorkoutsPerWeek:    request.WorkoutsPerWeek,
		CaloriesPerSession: request.CaloriesPerSession,
	}
	createdBy := plans.CreatedBySystem
	if request.Manual != nil {
		input.Manual = &nutrition.ManualTargets{
			CalorieTarget: request.Manual.CalorieTarget,
			ProteinG:      request.Manual.ProteinG,
			CarbG:         request.Manual.CarbG,
			FatG:          request.Manual.FatG,
			Strategy:      request.Manual.Strategy,
		}
		createdBy = plans.CreatedByUser
	}
	targets, err := nutrition.GenerateDietPlan(input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	plan, err := h.plans.Create(ctx, plans.FromTargets(userID(c), targets, plans.NewPlanOptions{
		StartDay:           measurements.FormatDay(h.clock()),
		WorkoutsPerWeek:    request.WorkoutsPerWeek,
		CaloriesPerSession: request.CaloriesPerSession,
		Notes:              strings.TrimSpace(request.Notes),
		CreatedBy:          createdBy,
	}))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateTrends(c)
	c.JSON(http.StatusCreated, dietPlanResponse{Plan: plan, Targets: targets})
}

type recalculateResponse struct {
	AdaptiveActive bool                  `json:"adaptive_active"`
	Updated        bool                  `json:"updated"`
	DryRun         bool                  `json:"dry_run"`
	Reason         adaptive.Reason       `json:"reason"`
	PreviousTDEE   int                   `json:"previous_tdee"`
	Estimate       adaptive.Estimate     `json:"estimate"`
	Decision       adaptive.Decision     `json:"decision"`
	Update         *plans.AdaptiveUpdate `json:"update,omitempty"`
	Plan           plans.DietPlan        `json:"plan"`
}

// handleRecalculateTDEE runs the adaptive estimator. Outcomes that are not yet actionable
// are informational and answered with 200.
func (h *httpHandler) handleRecalculateTDEE(c *gin.Context) {
	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))

	run := h.adaptive.Recalculate
	if dryRun {
		run = h.adaptive.DryRun
	}
	outcome, err := run(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if outcome.Updated {
		h.invalidateTrends(c)
	}
	h.logger.Debug("tdee recalculation",
		zap.String("user_id", userID(c)),
		zap.Bool("dry_run", dryRun),
		zap.Bool("updated", outcome.Updated),
		zap.String("reason", string(outcome.Decision.Reason)),
	)
	c.JSON(http.StatusOK, recalculateResponse{
		AdaptiveActive: outcome.Estimate.CanActivate,
		Updated:        outcome.Updated,
		DryRun:         dryRun,
		Reason:         outcome.Decision.Reason,
		PreviousTDEE:   outcome.PreviousTDEE,
		Estimate:       outcome.Estimate,
		Decision:       outcome.Decision,
		Update:         outcome.Update,
		Plan:           outcome.Plan,
	})
}

func (h *httpHandler) handleTDEELog(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultTDEELogLimit, maxHistoryLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
		return
	}
	entries, err := h.auditLog.List(c.Request.Context(), userID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
