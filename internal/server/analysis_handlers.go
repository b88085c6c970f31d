package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/cache"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/trends"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxTrendDays = 90
	// trendHeadroom widens the fetch so weighed gaps inside the window still leave enough records.
	trendHeadroom = 5
)

func (h *httpHandler) handleTrendAnalysis(c *gin.Context) {
	days, ok := queryInt(c, "days", trends.DefaultWindowDays, maxTrendDays)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days"})
		return
	}
	ctx := c.Request.Context()

	var objective nutrition.Objective
	if raw := strings.TrimSpace(c.Query("objective")); raw != "" {
		parsed, err := nutrition.ParseObjective(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		objective = parsed
	} else {
		profile, err := h.profiles.Resolve(ctx, userID(c))
		if err != nil {
			h.respondError(c, err)
			return
		}
		objective = profile.Objective
	}

	key := cache.TrendKey(userID(c), string(objective), days)
	var cached trends.Analysis
	hit, err := h.cache.Get(ctx, key, &cached)
	if err != nil {
		h.logger.Warn("trend cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	series, err := h.measurements.Recent(ctx, userID(c), days+trendHeadroom)
	if err != nil {
		h.respondError(c, err)
		return
	}
	var activePlan *plans.DietPlan
	plan, err := h.plans.Active(ctx, userID(c))
	switch {
	case err == nil:
		activePlan = &plan
	case !errors.Is(err, plans.ErrNoActivePlan):
		h.respondError(c, err)
		return
	}

	analysis := trends.AnalyzeComplete(series, objective, activePlan, days, h.clock())
	if err := h.cache.Set(ctx, key, analysis, h.cacheTTL); err != nil {
		h.logger.Warn("trend cache write failed", zap.String("key", key), zap.Error(err))
	}
	c.JSON(http.StatusOK, analysis)
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	profile, err := h.profiles.Resolve(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request users.ProfileUpdate
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), userID(c), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// The default objective of cached analyses may have changed.
	h.invalidateTrends(c)
	c.JSON(http.StatusOK, profile)
}
