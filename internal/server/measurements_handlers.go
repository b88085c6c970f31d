package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/measurements"
	"github.com/gin-gonic/gin"
)

const (
	maxListLimit              = 365
	defaultStatsDays          = 30
	defaultCalorieHistoryDays = 30
)

type measurementResponse struct {
	Measurement measurements.Measurement `json:"measurement"`
	Created     bool                     `json:"created"`
}

func (h *httpHandler) handleUpsertMeasurement(c *gin.Context) {
	var request measurements.Measurement
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	request.ID = ""
	request.UserID = userID(c)
	if strings.TrimSpace(request.Day) == "" {
		request.Day = measurements.FormatDay(h.clock())
	}

	stored, created, err := h.measurements.Upsert(c.Request.Context(), request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateTrends(c)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, measurementResponse{Measurement: stored, Created: created})
}

func (h *httpHandler) handleListMeasurements(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0, maxListLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
		return
	}
	records, err := h.measurements.List(c.Request.Context(), userID(c), measurements.ListFilter{
		FromDay: c.Query("from"),
		ToDay:   c.Query("to"),
		Limit:   limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"measurements": records, "count": len(records)})
}

func (h *httpHandler) handleMeasurementStats(c *gin.Context) {
	days, ok := queryInt(c, "days", defaultStatsDays, maxListLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days"})
		return
	}
	since := h.clock().UTC().AddDate(0, 0, -(days - 1))
	records, err := h.measurements.ListSince(c.Request.Context(), userID(c), since, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period_days": days, "stats": measurements.Summarize(records)})
}

func (h *httpHandler) handleGetMeasurement(c *gin.Context) {
	record, err := h.measurements.Get(c.Request.Context(), userID(c), c.Param("measurementID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleDeleteMeasurement(c *gin.Context) {
	if err := h.measurements.Delete(c.Request.Context(), userID(c), c.Param("measurementID")); err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateTrends(c)
	c.Status(http.StatusNoContent)
}

type dailyCaloriesRequest struct {
	Date          string `json:"date"`
	BreakfastKcal *int   `json:"breakfast_kcal"`
	LunchKcal     *int   `json:"lunch_kcal"`
	DinnerKcal    *int   `json:"dinner_kcal"`
	SnacksKcal    *int   `json:"snacks_kcal"`
}

func (h *httpHandler) handleDailyCalories(c *gin.Context) {
	var request dailyCaloriesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	day := strings.TrimSpace(request.Date)
	if day == "" {
		day = measurements.FormatDay(h.clock())
	}
	stored, created, err := h.measurements.UpsertDailyCalories(c.Request.Context(), userID(c), day, measurements.Meals{
		BreakfastKcal: request.BreakfastKcal,
		LunchKcal:     request.LunchKcal,
		DinnerKcal:    request.DinnerKcal,
		SnacksKcal:    request.SnacksKcal,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.invalidateTrends(c)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, measurementResponse{Measurement: stored, Created: created})
}

func (h *httpHandler) handleCalorieHistory(c *gin.Context) {
	days, ok := queryInt(c, "days", defaultCalorieHistoryDays, maxListLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_days"})
		return
	}
	since := h.clock().UTC().AddDate(0, 0, -(days - 1))
	history, err := h.measurements.CalorieHistory(c.Request.Context(), userID(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": history, "count": len(history), "period_days": days})
}

func (h *httpHandler) handleTodayCalories(c *gin.Context) {
	daily, err := h.measurements.Today(c.Request.Context(), userID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, daily)
}
