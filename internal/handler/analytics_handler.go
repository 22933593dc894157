package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// AnalyticsHandler exposes score analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// ClassScores godoc
// @Summary Class statistics for one exam sitting
// @Tags Analytics
// @Produce json
// @Param class_id query string true "Class ID"
// @Param exam_id query string true "Exam ID"
// @Param subject_id query string false "Restrict to one subject"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/class-scores [get]
func (h *AnalyticsHandler) ClassScores(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Query("class_id")
	examID := c.Query("exam_id")
	if classID == "" || examID == "" {
		response.Error(c, appErrors.Validationf("class_id and exam_id are required"))
		return
	}
	result, err := h.analytics.ClassScores(c.Request.Context(), claims.UserID, claims.Role, classID, examID, c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "class statistics computed", result)
}

// Historical godoc
// @Summary Metric series for a class across selected exams
// @Tags Analytics
// @Produce json
// @Param class_id query string true "Class ID"
// @Param exam_ids query string true "Comma-separated exam IDs"
// @Param subject_id query string false "Restrict to one subject"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/historical [get]
func (h *AnalyticsHandler) Historical(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Validationf("class_id is required"))
		return
	}
	result, err := h.analytics.Historical(c.Request.Context(), claims.UserID, claims.Role, classID, splitIDs(c.Query("exam_ids")), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "historical series computed", result)
}

// StudentTrend godoc
// @Summary Score trend, radar and rank history for one student
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param subject_id query string false "Restrict to one subject"
// @Param limit query int false "Number of recent sittings"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/students/{id}/trend [get]
func (h *AnalyticsHandler) StudentTrend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	result, err := h.analytics.StudentTrend(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), c.Query("subject_id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "student trend computed", result)
}

// StudentStatistics godoc
// @Summary Per-subject statistics for one student
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param exam_id query string false "Restrict to one exam sitting"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/students/{id}/statistics [get]
func (h *AnalyticsHandler) StudentStatistics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.analytics.StudentStatistics(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), c.Query("exam_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "student statistics computed", result)
}

// Comparative godoc
// @Summary Compare classes or grades on one exam
// @Tags Analytics
// @Produce json
// @Param exam_id query string true "Exam ID"
// @Param target_type query string true "class or grade"
// @Param target_ids query string true "Comma-separated target IDs"
// @Param subject_id query string false "Restrict to one subject"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/comparative [get]
func (h *AnalyticsHandler) Comparative(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	examID := c.Query("exam_id")
	if examID == "" {
		response.Error(c, appErrors.Validationf("exam_id is required"))
		return
	}
	result, err := h.analytics.Comparative(c.Request.Context(), claims.UserID, claims.Role, examID, c.Query("target_type"), splitIDs(c.Query("target_ids")), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "comparison computed", result)
}

// LevelDistribution godoc
// @Summary Level bands and progress index for classes of one grade
// @Tags Analytics
// @Produce json
// @Param class_ids query string true "Comma-separated class IDs"
// @Param exam_id query string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/level-distribution [get]
func (h *AnalyticsHandler) LevelDistribution(c *gin.Context) {
	classIDs := splitIDs(c.Query("class_ids"))
	examID := c.Query("exam_id")
	if len(classIDs) == 0 || examID == "" {
		response.Error(c, appErrors.Validationf("class_ids and exam_id are required"))
		return
	}
	result, err := h.analytics.LevelDistribution(c.Request.Context(), classIDs, examID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "level distribution computed", result)
}

// SystemMetrics godoc
// @Summary Runtime instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/system-metrics [get]
func (h *AnalyticsHandler) SystemMetrics(c *gin.Context) {
	response.OK(c, "system metrics", h.analytics.SystemMetrics())
}
