package server

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/adaptive"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/cache"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/faults"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/nutrition"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/plans"
	"github.com/MarcoPoloResearchLab/recomp/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDParam     = "userID"
	defaultCacheTTL = 15 * time.Minute
)

var (
	errMissingMeasurements = errors.New("measurement store dependency required")
	errMissingPlans        = errors.New("plan store dependency required")
	errMissingAdaptive     = errors.New("adaptive service dependency required")
	errMissingAuditLog     = errors.New("audit log dependency required")
	errMissingProfiles     = errors.New("profile service dependency required")
)

type Dependencies struct {
	Measurements   *measurements.Store
	Plans          *plans.Store
	Adaptive       *adaptive.Service
	AuditLog       *adaptive.AuditLog
	Profiles       *users.Service
	Cache          cache.Cache
	CacheTTL       time.Duration
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Measurements == nil {
		return nil, errMissingMeasurements
	}
	if deps.Plans == nil {
		return nil, errMissingPlans
	}
	if deps.Adaptive == nil {
		return nil, errMissingAdaptive
	}
	if deps.AuditLog == nil {
		return nil, errMissingAuditLog
	}
	if deps.Profiles == nil {
		return nil, errMissingProfiles
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	trendCache := deps.Cache
	if trendCache == nil {
		trendCache = cache.NopCache{}
	}
	cacheTTL := deps.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		measurements: deps.Measurements,
		plans:        deps.Plans,
		adaptive:     deps.Adaptive,
		auditLog:     deps.AuditLog,
		profiles:     deps.Profiles,
		cache:        trendCache,
		cacheTTL:     cacheTTL,
		clock:        clock,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)

	userRoutes := router.Group("/users/:" + userIDParam)
	userRoutes.Use(handler.requireUserID)

	userRoutes.POST("/measurements", handler.handleUpsertMeasurement)
	userRoutes.GET("/measurements", handler.handleListMeasurements)
	userRoutes.GET("/measurements/stats", handler.handleMeasurementStats)
	userRoutes.GET("/measurements/:measurementID", handler.handleGetMeasurement)
	userRoutes.DELETE("/measurements/:measurementID", handler.handleDeleteMeasurement)

	userRoutes.POST("/calories/daily", handler.handleDailyCalories)
	userRoutes.GET("/calories/today", handler.handleTodayCalories)
	userRoutes.GET("/calories/history", handler.handleCalorieHistory)

	userRoutes.GET("/plans/current", handler.handleCurrentPlan)
	userRoutes.GET("/plans/history", handler.handlePlanHistory)
	userRoutes.POST("/plans/diet", handler.handleGenerateDietPlan)
	userRoutes.POST("/plans/workout", handler.handleCreateWorkoutPlan)
	userRoutes.POST("/plans/diet/recalculate-tdee", handler.handleRecalculateTDEE)
	userRoutes.GET("/plans/diet/tdee-log", handler.handleTDEELog)

	userRoutes.GET("/analysis/trends", handler.handleTrendAnalysis)

	userRoutes.GET("/profile", handler.handleGetProfile)
	userRoutes.PUT("/profile", handler.handleUpdateProfile)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

type httpHandler struct {
	measurements *measurements.Store
	plans        *plans.Store
	adaptive     *adaptive.Service
	auditLog     *adaptive.AuditLog
	profiles     *users.Service
	cache        cache.Cache
	cacheTTL     time.Duration
	clock        func() time.Time
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) requireUserID(c *gin.Context) {
	if _, err := measurements.NormalizeUserID(c.Param(userIDParam)); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_user_id"})
		return
	}
	c.Next()
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.Param(userIDParam))
}

// respondError maps domain errors onto HTTP statuses and echoes the service error code.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, message := classifyError(err)
	body := gin.H{"error": message}
	if code := faults.CodeOf(err); code != "" {
		body["code"] = code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("user_id", userID(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, plans.ErrNoActivePlan):
		return http.StatusNotFound, "no_active_plan"
	case errors.Is(err, plans.ErrNoActiveWorkoutPlan):
		return http.StatusNotFound, "no_active_workout_plan"
	case errors.Is(err, measurements.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, adaptive.ErrNoMeasurementData):
		return http.StatusUnprocessableEntity, "no_measurement_data"
	case errors.Is(err, plans.ErrPlanNotActive):
		return http.StatusConflict, "plan_not_active"
	case errors.Is(err, measurements.ErrInvalidMeasurement),
		errors.Is(err, measurements.ErrInvalidDay),
		errors.Is(err, measurements.ErrInvalidUserID),
		errors.Is(err, nutrition.ErrInvalidInput),
		errors.Is(err, plans.ErrInvalidPlan),
		errors.Is(err, users.ErrInvalidProfile),
		strings.HasSuffix(faults.CodeOf(err), ".invalid_input"):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// invalidateTrends drops the cached analyses of a user after their data changed.
func (h *httpHandler) invalidateTrends(c *gin.Context) {
	if err := h.cache.InvalidatePrefix(c.Request.Context(), cache.UserTrendPrefix(userID(c))); err != nil {
		h.logger.Warn("trend cache invalidation failed", zap.String("user_id", userID(c)), zap.Error(err))
	}
}

func queryInt(c *gin.Context, name string, fallback, maximum int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 || value > maximum {
		return 0, false
	}
	return value, true
}
