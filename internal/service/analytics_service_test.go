package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type mockAnalyticsScores struct {
	rows    []models.CohortScoreRow
	roster  []models.RosterEntry
	filters []models.CohortFilter
	listFn  func(models.CohortFilter) []models.CohortScoreRow
}

func (m *mockAnalyticsScores) ListCohort(ctx context.Context, filter models.CohortFilter) ([]models.CohortScoreRow, error) {
	m.filters = append(m.filters, filter)
	if m.listFn != nil {
		return m.listFn(filter), nil
	}
	return m.rows, nil
}

func (m *mockAnalyticsScores) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

type mockAnalyticsExams struct {
	byID    map[string]*models.Exam
	byGroup map[string][]models.ExamDetail
}

func (m *mockAnalyticsExams) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnalyticsExams) ListByGroup(ctx context.Context, groupID string) ([]models.ExamDetail, error) {
	return m.byGroup[groupID], nil
}

func (m *mockAnalyticsExams) FindInGroupBySubject(ctx context.Context, groupID, subjectID string) (*models.Exam, error) {
	for _, detail := range m.byGroup[groupID] {
		if detail.SubjectID == subjectID {
			exam := detail.Exam
			return &exam, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAnalyticsExams) FindPreviousGroupExam(ctx context.Context, subjectID string, before time.Time) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

type mockAnalyticsClasses struct{ detail *models.ClassDetail }

func (m *mockAnalyticsClasses) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if m.detail != nil && m.detail.ID == id {
		return m.detail, nil
	}
	return nil, sql.ErrNoRows
}

type mockAnalyticsStudents struct{ detail *models.StudentDetail }

func (m *mockAnalyticsStudents) FindDetailByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if m.detail != nil && m.detail.ID == id {
		return m.detail, nil
	}
	return nil, sql.ErrNoRows
}

type mockAnalyticsGrades struct{ grade *models.Grade }

func (m *mockAnalyticsGrades) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	if m.grade != nil && m.grade.ID == id {
		return m.grade, nil
	}
	return nil, sql.ErrNoRows
}

func cohortRow(studentID, subjectID, examID string, score float64, date time.Time) models.CohortScoreRow {
	return models.CohortScoreRow{
		StudentID:   studentID,
		StudentName: "Student " + studentID,
		StudentCode: "S-" + studentID,
		ClassID:     "c1",
		SubjectID:   subjectID,
		SubjectName: subjectID,
		ExamID:      examID,
		ExamName:    "Midterm - " + subjectID,
		ExamDate:    date,
		TotalScore:  100,
		Score:       score,
	}
}

func TestAnalyticsClassScoresGroupExpansion(t *testing.T) {
	groupID := "grp1"
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mathExam := models.Exam{ID: "e-math", Name: "Midterm - math", SubjectID: "math", TotalScore: 100, ExamDate: date, GroupID: &groupID}
	englishExam := models.Exam{ID: "e-eng", Name: "Midterm - english", SubjectID: "english", TotalScore: 100, ExamDate: date, GroupID: &groupID}

	scores := &mockAnalyticsScores{
		rows: []models.CohortScoreRow{
			cohortRow("s1", "math", "e-math", 90, date),
			cohortRow("s2", "math", "e-math", 70, date),
			cohortRow("s1", "english", "e-eng", 80, date),
			cohortRow("s2", "english", "e-eng", 60, date),
		},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentCode: "S-s1", StudentName: "Student s1", ClassID: "c1"},
			{StudentID: "s2", StudentCode: "S-s2", StudentName: "Student s2", ClassID: "c1"},
			{StudentID: "s3", StudentCode: "S-s3", StudentName: "Student s3", ClassID: "c1"},
		},
	}
	exams := &mockAnalyticsExams{
		byID: map[string]*models.Exam{"e-math": &mathExam},
		byGroup: map[string][]models.ExamDetail{groupID: {
			{Exam: mathExam, SubjectName: "math"},
			{Exam: englishExam, SubjectName: "english"},
		}},
	}
	classes := &mockAnalyticsClasses{detail: &models.ClassDetail{
		Class:     models.Class{ID: "c1", Name: "1A", GradeID: "g1"},
		GradeName: "Grade 1",
	}}

	svc := NewAnalyticsService(scores, exams, classes, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	result, err := svc.ClassScores(context.Background(), "admin", models.RoleAdmin, "c1", "e-math", "")
	require.NoError(t, err)

	assert.Equal(t, 3, result.StudentCount)
	assert.Equal(t, 2, result.ScoredCount)
	assert.InDelta(t, 66.67, result.CompletionRate, 0.01)
	require.Len(t, result.Subjects, 2)

	// The requested exam expands to every subject of its group.
	examIDs := scores.filters[0].ExamIDs
	assert.ElementsMatch(t, []string{"e-math", "e-eng"}, examIDs)

	require.Len(t, result.Totals, 2)
	assert.Equal(t, "s1", result.Totals[0].StudentID)
	assert.Equal(t, 1, result.Totals[0].Rank)
	assert.Equal(t, 170.0, result.Totals[0].Total)
	require.NotNil(t, result.Overall)
}

func TestAnalyticsClassScoresSubjectFilter(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	groupID := "grp1"
	mathExam := models.Exam{ID: "e-math", Name: "Midterm - math", SubjectID: "math", TotalScore: 100, ExamDate: date, GroupID: &groupID}
	englishExam := models.Exam{ID: "e-eng", Name: "Midterm - english", SubjectID: "english", TotalScore: 100, ExamDate: date, GroupID: &groupID}

	scores := &mockAnalyticsScores{rows: []models.CohortScoreRow{cohortRow("s1", "english", "e-eng", 80, date)}}
	exams := &mockAnalyticsExams{
		byID: map[string]*models.Exam{"e-math": &mathExam},
		byGroup: map[string][]models.ExamDetail{groupID: {
			{Exam: mathExam, SubjectName: "math"},
			{Exam: englishExam, SubjectName: "english"},
		}},
	}
	classes := &mockAnalyticsClasses{detail: &models.ClassDetail{Class: models.Class{ID: "c1", Name: "1A", GradeID: "g1"}}}

	svc := NewAnalyticsService(scores, exams, classes, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	_, err := svc.ClassScores(context.Background(), "admin", models.RoleAdmin, "c1", "e-math", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"e-eng"}, scores.filters[0].ExamIDs)
}

func TestAnalyticsClassScoresUnknownClass(t *testing.T) {
	svc := NewAnalyticsService(&mockAnalyticsScores{}, &mockAnalyticsExams{}, &mockAnalyticsClasses{}, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	_, err := svc.ClassScores(context.Background(), "admin", models.RoleAdmin, "missing", "e1", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSittingLabelStripsSubjectSuffix(t *testing.T) {
	assert.Equal(t, "Midterm 2026", sittingLabel("Midterm 2026 - Math"))
	assert.Equal(t, "Final", sittingLabel("Final"))
}

func TestMakeAnalyticsCacheKey(t *testing.T) {
	key := makeAnalyticsCacheKey("class_scores", "c1", "", "math")
	assert.Equal(t, "analytics:class_scores:c1::math", key)

	// Empty parts keep their segment, so shifted arguments never share a key.
	assert.NotEqual(t,
		makeAnalyticsCacheKey("class_scores", "c1", "", "math"),
		makeAnalyticsCacheKey("class_scores", "c1", "math", ""))
}

func TestAnalyticsHistoricalAlignsScorelessExams(t *testing.T) {
	d1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	scored := models.Exam{ID: "e1", Name: "Midterm", SubjectID: "math", TotalScore: 100, ExamDate: d1}
	scoreless := models.Exam{ID: "e2", Name: "Final", SubjectID: "math", TotalScore: 100, ExamDate: d2}

	scores := &mockAnalyticsScores{rows: []models.CohortScoreRow{
		cohortRow("s1", "math", "e1", 90, d1),
		cohortRow("s2", "math", "e1", 50, d1),
	}}
	exams := &mockAnalyticsExams{byID: map[string]*models.Exam{"e1": &scored, "e2": &scoreless}}

	svc := NewAnalyticsService(scores, exams, &mockAnalyticsClasses{}, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	result, err := svc.Historical(context.Background(), "admin", models.RoleAdmin, "c1", []string{"e2", "e1"}, "")
	require.NoError(t, err)

	// Every metric series stays index-aligned with the label axis; the
	// scoreless exam contributes a null point, not a missing one.
	require.Equal(t, []string{"Midterm", "Final"}, result.ExamLabels)
	require.Len(t, result.ExamDates, 2)
	for _, series := range [][]models.HistoricalMetricPoint{result.Mean, result.PassRate, result.Excellent, result.Max, result.Min} {
		require.Len(t, series, len(result.ExamLabels))
		assert.Equal(t, "e1", series[0].ExamID)
		require.NotNil(t, series[0].Value)
		assert.Equal(t, "e2", series[1].ExamID)
		assert.Nil(t, series[1].Value)
	}
	assert.InDelta(t, 70.0, *result.Mean[0].Value, 0.01)
}

func TestAnalyticsHistoricalSubjectFilterResolvesGroup(t *testing.T) {
	groupID := "grp1"
	d1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	mathExam := models.Exam{ID: "e-math", Name: "Midterm - math", SubjectID: "math", TotalScore: 100, ExamDate: d1, GroupID: &groupID}
	englishExam := models.Exam{ID: "e-eng", Name: "Midterm - english", SubjectID: "english", TotalScore: 100, ExamDate: d1, GroupID: &groupID}
	soloMath := models.Exam{ID: "e-solo", Name: "Quiz", SubjectID: "math", TotalScore: 100, ExamDate: d2}

	scores := &mockAnalyticsScores{rows: []models.CohortScoreRow{cohortRow("s1", "english", "e-eng", 80, d1)}}
	exams := &mockAnalyticsExams{
		byID: map[string]*models.Exam{"e-math": &mathExam, "e-eng": &englishExam, "e-solo": &soloMath},
		byGroup: map[string][]models.ExamDetail{groupID: {
			{Exam: mathExam, SubjectName: "math"},
			{Exam: englishExam, SubjectName: "english"},
		}},
	}

	svc := NewAnalyticsService(scores, exams, &mockAnalyticsClasses{}, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	result, err := svc.Historical(context.Background(), "admin", models.RoleAdmin, "c1", []string{"e-math", "e-eng", "e-solo"}, "english")
	require.NoError(t, err)

	// The math exam maps onto its group's english sibling, so requesting
	// both yields one axis entry. The groupless math exam keeps its place
	// on the axis with null points.
	require.Equal(t, []string{"Midterm - english", "Quiz"}, result.ExamLabels)
	require.Len(t, result.Mean, 2)
	assert.Equal(t, "e-eng", result.Mean[0].ExamID)
	require.NotNil(t, result.Mean[0].Value)
	assert.Equal(t, "e-solo", result.Mean[1].ExamID)
	assert.Nil(t, result.Mean[1].Value)
	assert.ElementsMatch(t, []string{"e-eng", "e-solo"}, scores.filters[0].ExamIDs)
}

func TestStudentTrendRankHistorySubjectScope(t *testing.T) {
	d1 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	studentRows := []models.CohortScoreRow{cohortRow("s1", "math", "e1", 70, d1)}
	classRows := []models.CohortScoreRow{
		cohortRow("s1", "math", "e1", 70, d1),
		cohortRow("s2", "math", "e1", 90, d1),
	}
	scores := &mockAnalyticsScores{listFn: func(filter models.CohortFilter) []models.CohortScoreRow {
		if filter.StudentID != "" {
			return studentRows
		}
		return classRows
	}}
	students := &mockAnalyticsStudents{detail: &models.StudentDetail{
		Student: models.Student{ID: "s1", Name: "Student s1", ClassID: "c1"},
		GradeID: "g1",
	}}

	svc := NewAnalyticsService(scores, &mockAnalyticsExams{}, &mockAnalyticsClasses{}, students, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	result, err := svc.StudentTrend(context.Background(), "admin", models.RoleAdmin, "s1", "math", 10)
	require.NoError(t, err)

	// Subject-filtered trends rank single-subject totals.
	require.Len(t, result.RankHistory, 1)
	assert.Equal(t, 2, result.RankHistory[0].Rank)
	assert.Equal(t, 2, result.RankHistory[0].CohortSize)

	var classFilter *models.CohortFilter
	for i := range scores.filters {
		if scores.filters[i].ClassID == "c1" {
			classFilter = &scores.filters[i]
		}
	}
	require.NotNil(t, classFilter)
	assert.Equal(t, "math", classFilter.SubjectID)
}

func TestGroupSittingsBucketsByDate(t *testing.T) {
	d1 := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)
	rows := []models.CohortScoreRow{
		cohortRow("s1", "math", "e1", 80, d1),
		cohortRow("s1", "english", "e2", 70, d1),
		cohortRow("s1", "math", "e3", 85, d2),
	}

	sittings := groupSittings(rows)
	require.Len(t, sittings, 2)
	assert.Len(t, sittings[0].rows, 2)
	assert.Len(t, sittings[1].rows, 1)
}
