package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
)

type mockImportScores struct {
	roster   []models.RosterEntry
	upserted []models.ScoreUpsert
	examID   string
}

func (m *mockImportScores) BulkUpsert(ctx context.Context, rows []models.ScoreUpsert, examID, subjectID string) error {
	m.upserted = rows
	m.examID = examID
	return nil
}

func (m *mockImportScores) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

type mockImportExams struct {
	byID    map[string]*models.Exam
	inGroup map[string]*models.Exam
	created *models.Exam
}

func (m *mockImportExams) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockImportExams) FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error) {
	if e, ok := m.inGroup[groupID+"/"+subjectID]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockImportExams) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = "created-exam"
	m.created = exam
	return nil
}

type mockImportClasses struct{ class *models.Class }

func (m *mockImportClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if m.class != nil && m.class.ID == id {
		return m.class, nil
	}
	return nil, sql.ErrNoRows
}

type mockImportSubjects struct{ subjects map[string]*models.Subject }

func (m *mockImportSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func renderImportSheet(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()
	data, err := excel.Render(excel.Sheet{Name: "Scores", Title: "Scores", Headers: templateHeaders, Rows: rows})
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func newImportFixture() (*ScoreImportService, *mockImportScores, *mockImportExams) {
	scores := &mockImportScores{roster: []models.RosterEntry{
		{StudentID: "s1", StudentName: "Alice", StudentCode: "S001", ClassID: "c1"},
		{StudentID: "s2", StudentName: "Bob", StudentCode: "S002", ClassID: "c1"},
	}}
	exams := &mockImportExams{byID: map[string]*models.Exam{
		"e1": {ID: "e1", Name: "Midterm - Math", SubjectID: "math", TotalScore: 100, ExamDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
	}}
	classes := &mockImportClasses{class: &models.Class{ID: "c1", GradeID: "g1"}}
	subjects := &mockImportSubjects{subjects: map[string]*models.Subject{
		"english": {ID: "english", Name: "English"},
	}}
	svc := NewScoreImportService(scores, exams, classes, subjects, nil, 0, 0, zap.NewNop())
	return svc, scores, exams
}

func TestScoreImportAppliesValidRows(t *testing.T) {
	svc, scores, _ := newImportFixture()
	reader := renderImportSheet(t, [][]string{
		{"S001", "Alice", "85"},
		{"S002", "Bob", "92.5"},
	})

	result, err := svc.Import(context.Background(), ScoreImportInput{ExamID: "e1", ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	require.Len(t, scores.upserted, 2)
	assert.Equal(t, "s1", scores.upserted[0].StudentID)
	assert.Equal(t, 85.0, scores.upserted[0].Score)
	assert.Equal(t, "e1", scores.examID)
}

func TestScoreImportPartialSuccess(t *testing.T) {
	svc, scores, _ := newImportFixture()
	reader := renderImportSheet(t, [][]string{
		{"S001", "Alice", "85"},
		{"S999", "Ghost", "70"},
		{"S002", "Bob", "not-a-number"},
		{"S001", "Alice", "90"},
	})

	result, err := svc.Import(context.Background(), ScoreImportInput{ExamID: "e1", ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 3, result.ErrorCount)
	require.Len(t, scores.upserted, 1)

	messages := make([]string, 0, len(result.ErrorDetails))
	for _, detail := range result.ErrorDetails {
		messages = append(messages, detail.Message)
	}
	assert.Contains(t, messages, "student is not in this class")
	assert.Contains(t, messages, "duplicate student code")
}

func TestScoreImportRejectsOutOfRange(t *testing.T) {
	svc, scores, _ := newImportFixture()
	reader := renderImportSheet(t, [][]string{
		{"S001", "Alice", "101"},
	})

	result, err := svc.Import(context.Background(), ScoreImportInput{ExamID: "e1", ClassID: "c1", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Empty(t, scores.upserted)
}

func TestScoreImportUnknownClass(t *testing.T) {
	svc, _, _ := newImportFixture()
	reader := renderImportSheet(t, [][]string{{"S001", "Alice", "85"}})

	_, err := svc.Import(context.Background(), ScoreImportInput{ExamID: "e1", ClassID: "missing", Reader: reader})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScoreImportCreatesSiblingExam(t *testing.T) {
	svc, scores, exams := newImportFixture()
	groupID := "grp1"
	exams.byID["e1"].GroupID = &groupID
	reader := renderImportSheet(t, [][]string{{"S001", "Alice", "60"}})

	result, err := svc.Import(context.Background(), ScoreImportInput{ExamID: "e1", ClassID: "c1", SubjectID: "english", Reader: reader})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.NotNil(t, exams.created)
	assert.Equal(t, "english", exams.created.SubjectID)
	assert.Equal(t, "Midterm - English", exams.created.Name)
	assert.Equal(t, "created-exam", scores.examID)
}

func TestScoreImportTemplateRoundTrips(t *testing.T) {
	svc, _, _ := newImportFixture()
	data, err := svc.Template()
	require.NoError(t, err)

	rows, err := excel.ReadRows(bytes.NewReader(data))
	require.NoError(t, err)

	_, cols, err := locateHeader(rows)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cols.code, 0)
	assert.GreaterOrEqual(t, cols.score, 0)
}
