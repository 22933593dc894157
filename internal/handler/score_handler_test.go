package handler

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
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
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type scoreSheetRepoMock struct {
	rows    []models.CohortScoreRow
	roster  []models.RosterEntry
	upserts []models.ScoreUpsert
}

func (m *scoreSheetRepoMock) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.CohortScoreRow, error) {
	return m.rows, nil
}

func (m *scoreSheetRepoMock) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

func (m *scoreSheetRepoMock) BulkUpsert(ctx context.Context, rows []models.ScoreUpsert, examID, subjectID string) error {
	m.upserts = append(m.upserts, rows...)
	return nil
}

type scoreExamsMock struct{ byID map[string]*models.Exam }

func (m *scoreExamsMock) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *scoreExamsMock) ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error) {
	return nil, nil
}

func (m *scoreExamsMock) FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

func (m *scoreExamsMock) FindPreviousGroupExam(ctx context.Context, subjectID string, before time.Time) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

func (m *scoreExamsMock) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = "exam-created"
	m.byID[exam.ID] = exam
	return nil
}

type scoreClassesMock struct {
	class  *models.Class
	detail *models.ClassDetail
}

func (m *scoreClassesMock) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class != nil && m.class.ID == id {
		return m.class, nil
	}
	return nil, sql.ErrNoRows
}

func (m *scoreClassesMock) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if m.detail != nil && m.detail.ID == id {
		return m.detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *scoreClassesMock) ListByGrade(ctx context.Context, gradeID string) ([]models.Class, error) {
	return nil, nil
}

type scoreSubjectsMock struct{}

func (m *scoreSubjectsMock) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return nil, sql.ErrNoRows
}

func newScoreHandlerFixture() (*ScoreHandler, *scoreSheetRepoMock) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	exam := models.Exam{ID: "e1", Name: "Midterm", SubjectID: "math", TotalScore: 100, ExamDate: date}

	repo := &scoreSheetRepoMock{
		rows: []models.CohortScoreRow{{
			StudentID: "s1", StudentName: "Alice", StudentCode: "S001", ClassID: "c1",
			SubjectID: "math", SubjectName: "Mathematics", ExamID: "e1", ExamName: "Midterm",
			ExamDate: date, TotalScore: 100, Score: 88,
		}},
		roster: []models.RosterEntry{{StudentID: "s1", StudentName: "Alice", StudentCode: "S001", ClassID: "c1"}},
	}
	exams := &scoreExamsMock{byID: map[string]*models.Exam{"e1": &exam}}
	classes := &scoreClassesMock{
		class: &models.Class{ID: "c1", Name: "1A", Code: "1A", GradeID: "g1"},
		detail: &models.ClassDetail{
			Class:     models.Class{ID: "c1", Name: "1A", Code: "1A", GradeID: "g1"},
			GradeName: "Grade 1",
		},
	}

	importer := service.NewScoreImportService(repo, exams, classes, &scoreSubjectsMock{}, nil, 0, 0, zap.NewNop())
	exporter := service.NewScoreExportService(repo, exams, classes, nil, zap.NewNop())
	return NewScoreHandler(nil, importer, exporter), repo
}

func renderScoreSheet(t *testing.T, rows [][]string) []byte {
	t.Helper()
	data, err := excel.Render(excel.Sheet{
		Name:    "Scores",
		Title:   "Score Import",
		Headers: []string{"Student Code", "Student Name", "Score"},
		Rows:    rows,
	})
	require.NoError(t, err)
	return data
}

func scoreImportRequest(t *testing.T, sheet []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if sheet != nil {
		part, err := mw.CreateFormFile("file", "scores.xlsx")
		require.NoError(t, err)
		_, err = part.Write(sheet)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, "/scores/import", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestScoreHandlerImport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newScoreHandlerFixture()

	sheet := renderScoreSheet(t, [][]string{{"S001", "Alice", "91"}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = scoreImportRequest(t, sheet, map[string]string{"exam_id": "e1", "class_id": "c1"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Import(c)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["success_count"])
	assert.Equal(t, float64(0), data["error_count"])

	require.Len(t, repo.upserts, 1)
	assert.Equal(t, "s1", repo.upserts[0].StudentID)
	assert.Equal(t, 91.0, repo.upserts[0].Score)
}

func TestScoreHandlerImportMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScoreHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = scoreImportRequest(t, nil, map[string]string{"exam_id": "e1", "class_id": "c1"})

	handler.Import(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, "missing file upload", env.Message)
}

func TestScoreHandlerImportMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newScoreHandlerFixture()

	sheet := renderScoreSheet(t, [][]string{{"S001", "Alice", "91"}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = scoreImportRequest(t, sheet, map[string]string{"exam_id": "e1"})

	handler.Import(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, repo.upserts)
}

func TestScoreHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScoreHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/scores/import/template", nil)
	c.Request = req

	handler.Template(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "score_import_template.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestScoreHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScoreHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/scores/export?class_id=c1&exam_id=e1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "scores_1A_e1.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestScoreHandlerExportMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScoreHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/scores/export?class_id=c1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Export(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreHandlerExportRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newScoreHandlerFixture()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/scores/export?class_id=c1&exam_id=e1", nil)
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
