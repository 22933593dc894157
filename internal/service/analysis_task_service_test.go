package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/jobs"
)

type taskStatusChange struct {
	status   models.AnalysisTaskStatus
	progress int
	taskErr  *string
}

type mockTaskRepo struct {
	tasks         map[string]*models.AnalysisTask
	reports       []*models.AnalysisReport
	statusChanges []taskStatusChange
	completedID   string
	results       json.RawMessage
}

func (m *mockTaskRepo) CreateTask(ctx context.Context, task *models.AnalysisTask) error {
	if task.ID == "" {
		task.ID = "task-" + string(task.TaskType)
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *mockTaskRepo) FindTaskByID(ctx context.Context, id string) (*models.AnalysisTask, error) {
	if task, ok := m.tasks[id]; ok {
		return task, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTaskRepo) ListTasks(ctx context.Context, filter models.AnalysisTaskFilter) ([]models.AnalysisTask, int, error) {
	tasks := make([]models.AnalysisTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, *task)
	}
	return tasks, len(tasks), nil
}

func (m *mockTaskRepo) ListTasksByStatus(ctx context.Context, status models.AnalysisTaskStatus) ([]models.AnalysisTask, error) {
	var tasks []models.AnalysisTask
	for _, task := range m.tasks {
		if task.Status == status {
			tasks = append(tasks, *task)
		}
	}
	return tasks, nil
}

func (m *mockTaskRepo) UpdateTaskStatus(ctx context.Context, id string, status models.AnalysisTaskStatus, progress int, taskErr *string) error {
	m.statusChanges = append(m.statusChanges, taskStatusChange{status: status, progress: progress, taskErr: taskErr})
	if task, ok := m.tasks[id]; ok {
		task.Status = status
		task.Progress = progress
		task.Error = taskErr
	}
	return nil
}

func (m *mockTaskRepo) CompleteTask(ctx context.Context, id string, results json.RawMessage) error {
	m.completedID = id
	m.results = results
	if task, ok := m.tasks[id]; ok {
		task.Status = models.TaskCompleted
		task.Progress = 100
		task.Results = results
	}
	return nil
}

func (m *mockTaskRepo) CreateReport(ctx context.Context, report *models.AnalysisReport) error {
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockTaskRepo) ListReportsByTask(ctx context.Context, taskID string) ([]models.AnalysisReport, error) {
	var reports []models.AnalysisReport
	for _, report := range m.reports {
		if report.TaskID == taskID {
			reports = append(reports, *report)
		}
	}
	return reports, nil
}

func (m *mockTaskRepo) FindReportByPath(ctx context.Context, filePath string) (*models.AnalysisReport, error) {
	for _, report := range m.reports {
		if report.FilePath == filePath {
			return report, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockTaskUsers struct{ users map[string]*models.User }

func (m *mockTaskUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newTaskFixture(t *testing.T, classID string) (*AnalysisTaskService, *mockTaskRepo) {
	t.Helper()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	exam := models.Exam{ID: "e1", Name: "Midterm", SubjectID: "math", TotalScore: 100, ExamDate: date}
	scores := &mockAnalyticsScores{
		rows: []models.CohortScoreRow{
			cohortRow("s1", "math", "e1", 90, date),
			cohortRow("s2", "math", "e1", 60, date),
		},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentCode: "S-s1", StudentName: "Student s1", ClassID: "c1"},
			{StudentID: "s2", StudentCode: "S-s2", StudentName: "Student s2", ClassID: "c1"},
		},
	}
	exams := &mockAnalyticsExams{byID: map[string]*models.Exam{"e1": &exam}}
	classes := &mockAnalyticsClasses{detail: &models.ClassDetail{Class: models.Class{ID: "c1", Name: "1A", GradeID: "g1"}}}
	analytics := NewAnalyticsService(scores, exams, classes, &mockAnalyticsStudents{}, &mockAnalyticsGrades{}, nil, nil, nil, zap.NewNop())

	params, err := json.Marshal(models.ClassReportParams{ClassID: classID, ExamID: "e1", Format: "csv"})
	require.NoError(t, err)
	repo := &mockTaskRepo{tasks: map[string]*models.AnalysisTask{
		"t1": {ID: "t1", TaskType: models.TaskClassReport, UserID: "u1", Status: models.TaskQueued, Parameters: params},
	}}
	users := &mockTaskUsers{users: map[string]*models.User{"u1": {ID: "u1", Role: models.RoleAdmin}}}

	return NewAnalysisTaskService(repo, users, analytics, nil, nil, nil, zap.NewNop()), repo
}

func TestAnalysisTaskHandleLifecycle(t *testing.T) {
	svc, repo := newTaskFixture(t, "c1")

	err := svc.Handle(context.Background(), jobs.Job{ID: "t1", Type: string(models.TaskClassReport)})
	require.NoError(t, err)

	// Processing progress ticks up before the task completes.
	require.Len(t, repo.statusChanges, 2)
	assert.Equal(t, models.TaskProcessing, repo.statusChanges[0].status)
	assert.Equal(t, 10, repo.statusChanges[0].progress)
	assert.Nil(t, repo.statusChanges[0].taskErr)
	assert.Equal(t, models.TaskProcessing, repo.statusChanges[1].status)
	assert.Equal(t, 60, repo.statusChanges[1].progress)

	assert.Equal(t, "t1", repo.completedID)
	assert.Equal(t, models.TaskCompleted, repo.tasks["t1"].Status)

	var report models.ClassScoresAnalytics
	require.NoError(t, json.Unmarshal(repo.results, &report))
	assert.Equal(t, "c1", report.ClassID)
	assert.Equal(t, 2, report.ScoredCount)
}

func TestAnalysisTaskHandleFailureMarksTask(t *testing.T) {
	svc, repo := newTaskFixture(t, "missing")

	err := svc.Handle(context.Background(), jobs.Job{ID: "t1", Type: string(models.TaskClassReport)})
	require.Error(t, err)

	require.NotEmpty(t, repo.statusChanges)
	last := repo.statusChanges[len(repo.statusChanges)-1]
	assert.Equal(t, models.TaskFailed, last.status)
	require.NotNil(t, last.taskErr)
	assert.Contains(t, *last.taskErr, "class not found")

	assert.Empty(t, repo.completedID)
	assert.Equal(t, models.TaskFailed, repo.tasks["t1"].Status)
}

func TestAnalysisTaskHandleSkipsCompleted(t *testing.T) {
	svc, repo := newTaskFixture(t, "c1")
	repo.tasks["t1"].Status = models.TaskCompleted

	err := svc.Handle(context.Background(), jobs.Job{ID: "t1", Type: string(models.TaskClassReport)})
	require.NoError(t, err)
	assert.Empty(t, repo.statusChanges)
	assert.Empty(t, repo.completedID)
}
