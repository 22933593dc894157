package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

type analyticsScoresMock struct {
	rows   []models.CohortScoreRow
	roster []models.RosterEntry
}

func (m *analyticsScoresMock) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.CohortScoreRow, error) {
	return m.rows, nil
}

func (m *analyticsScoresMock) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

type analyticsExamsMock struct{ byID map[string]*models.Exam }

func (m *analyticsExamsMock) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *analyticsExamsMock) ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error) {
	return nil, nil
}

func (m *analyticsExamsMock) FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

func (m *analyticsExamsMock) FindPreviousGroupExam(ctx context.Context, subjectID string, before time.Time) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

type analyticsClassesMock struct{ detail *models.ClassDetail }

func (m *analyticsClassesMock) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if m.detail != nil && m.detail.ID == id {
		return m.detail, nil
	}
	return nil, sql.ErrNoRows
}

type analyticsStudentsMock struct{}

func (m *analyticsStudentsMock) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return nil, sql.ErrNoRows
}

type analyticsGradesMock struct{}

func (m *analyticsGradesMock) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	return nil, sql.ErrNoRows
}

func newAnalyticsHandlerFixture() *AnalyticsHandler {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	exam := models.Exam{ID: "e1", Name: "Midterm", SubjectID: "math", TotalScore: 100, ExamDate: date}

	scores := &analyticsScoresMock{
		rows: []models.CohortScoreRow{{
			StudentID: "s1", StudentName: "Alice", StudentCode: "S001", ClassID: "c1",
			SubjectID: "math", SubjectName: "Mathematics", ExamID: "e1", ExamName: "Midterm",
			ExamDate: date, TotalScore: 100, Score: 88,
		}},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Alice", StudentCode: "S001", ClassID: "c1"}},
	}
	exams := &analyticsExamsMock{byID: map[string]*models.Exam{"e1": &exam}}
	classes := &analyticsClassesMock{detail: &models.ClassDetail{Class: models.Class{ID: "c1", Name: "1A", GradeID: "g1"}}}

	svc := service.NewAnalyticsService(scores, exams, classes, &analyticsStudentsMock{}, &analyticsGradesMock{}, nil, nil, nil, zap.NewNop())
	return NewAnalyticsHandler(svc)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAnalyticsHandlerClassScores(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/class-scores?class_id=c1&exam_id=e1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ClassScores(c)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.Equal(t, "class statistics computed", env.Message)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "c1", data["class_id"])
	assert.Equal(t, float64(1), data["scored_count"])
}

func TestAnalyticsHandlerClassScoresMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/class-scores?class_id=c1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ClassScores(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Nil(t, env.Data)
}

func TestAnalyticsHandlerClassScoresRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/class-scores?class_id=c1&exam_id=e1", nil)
	c.Request = req

	handler.ClassScores(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnalyticsHandlerClassScoresUnknownClass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/class-scores?class_id=ghost&exam_id=e1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.ClassScores(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyticsHandlerHistorical(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/historical?class_id=c1&exam_ids=e1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Historical(c)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	labels, ok := data["exam_labels"].([]interface{})
	require.True(t, ok)
	assert.Len(t, labels, 1)
}

func TestAnalyticsHandlerHistoricalMissingClassID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/historical?exam_ids=e1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Historical(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsHandlerLevelDistributionMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAnalyticsHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/analytics/level-distribution?exam_id=e1", nil)
	c.Request = req

	handler.LevelDistribution(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
