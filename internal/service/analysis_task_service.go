package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/excel"
	"github.com/noah-isme/school-admin-api/pkg/export"
	"github.com/noah-isme/school-admin-api/pkg/jobs"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

type analysisTaskRepository interface {
	CreateTask(ctx context.Context, task *models.AnalysisTask) error
	FindTaskByID(ctx context.Context, id string) (*models.AnalysisTask, error)
	ListTasks(ctx context.Context, filter models.AnalysisTaskFilter) ([]models.AnalysisTask, int, error)
	ListTasksByStatus(ctx context.Context, status models.AnalysisTaskStatus) ([]models.AnalysisTask, error)
	UpdateTaskStatus(ctx context.Context, id string, status models.AnalysisTaskStatus, progress int, taskErr *string) error
	CompleteTask(ctx context.Context, id string, results json.RawMessage) error
	CreateReport(ctx context.Context, report *models.AnalysisReport) error
	ListReportsByTask(ctx context.Context, taskID string) ([]models.AnalysisReport, error)
	FindReportByPath(ctx context.Context, filePath string) (*models.AnalysisReport, error)
}

type taskUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AnalysisTaskService runs analysis jobs in the background: tasks are
// persisted first, then pushed onto the worker queue, and each finished run
// stores a downloadable report file. Task parameters are validated against
// the task type when the task is created, so the queue only ever carries
// well-formed work.
type AnalysisTaskService struct {
	repo      analysisTaskRepository
	users     taskUserRepository
	analytics *AnalyticsService
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnalysisTaskService constructs the analysis task service. Attach the
// worker queue with AttachQueue before creating tasks.
func NewAnalysisTaskService(repo analysisTaskRepository, users taskUserRepository, analytics *AnalyticsService, store *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger) *AnalysisTaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisTaskService{
		repo:      repo,
		users:     users,
		analytics: analytics,
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

// AttachQueue binds the worker queue. The queue's handler should be this
// service's Handle method.
func (s *AnalysisTaskService) AttachQueue(q *jobs.Queue) {
	s.queue = q
}

// Create validates the request against its task type, persists the task in
// the queued state and hands it to the workers.
func (s *AnalysisTaskService) Create(ctx context.Context, userID string, req models.CreateAnalysisTaskRequest) (*models.AnalysisTask, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if !req.TaskType.Valid() {
		return nil, appErrors.Validationf("unsupported task type %q", req.TaskType)
	}
	if err := s.validateParams(req.TaskType, req.Parameters); err != nil {
		return nil, err
	}

	task := &models.AnalysisTask{
		TaskType:   req.TaskType,
		UserID:     userID,
		Status:     models.TaskQueued,
		Parameters: req.Parameters,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}

	if err := s.enqueue(task); err != nil {
		reason := err.Error()
		if updateErr := s.repo.UpdateTaskStatus(ctx, task.ID, models.TaskFailed, 0, &reason); updateErr != nil {
			s.logger.Error("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(updateErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue task")
	}
	return task, nil
}

func (s *AnalysisTaskService) validateParams(taskType models.AnalysisTaskType, raw json.RawMessage) error {
	switch taskType {
	case models.TaskStudentTrend:
		var params models.StudentTrendParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return appErrors.Validationf("malformed parameters: %v", err)
		}
		if err := s.validator.Struct(params); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student trend parameters")
		}
	case models.TaskClassReport:
		var params models.ClassReportParams
		if err := json.Unmarshal(raw, &params); err != nil {
			return appErrors.Validationf("malformed parameters: %v", err)
		}
		if err := s.validator.Struct(params); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class report parameters")
		}
	}
	return nil
}

func (s *AnalysisTaskService) enqueue(task *models.AnalysisTask) error {
	if s.queue == nil {
		return fmt.Errorf("worker queue not attached")
	}
	return s.queue.Enqueue(jobs.Job{ID: task.ID, Type: string(task.TaskType)})
}

// Get returns a task with its reports and, when a signer is configured,
// signed download URLs. Non-admins only see their own tasks.
func (s *AnalysisTaskService) Get(ctx context.Context, userID string, role models.UserRole, id string) (*models.AnalysisTaskDetail, error) {
	task, err := s.repo.FindTaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if role != models.RoleAdmin && task.UserID != userID {
		return nil, appErrors.ErrForbidden
	}

	reports, err := s.repo.ListReportsByTask(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reports")
	}

	detail := &models.AnalysisTaskDetail{AnalysisTask: *task, Reports: make([]models.AnalysisReportLink, 0, len(reports))}
	for _, report := range reports {
		link := models.AnalysisReportLink{AnalysisReport: report}
		if s.signer != nil {
			token, expiresAt, signErr := s.signer.Generate(task.ID, report.FilePath)
			if signErr == nil {
				link.DownloadURL = token
				link.ExpiresAt = &expiresAt
			} else {
				s.logger.Warn("failed to sign report url", zap.String("report_id", report.ID), zap.Error(signErr))
			}
		}
		detail.Reports = append(detail.Reports, link)
	}
	return detail, nil
}

// List returns tasks matching the filter. Non-admins are pinned to their own.
func (s *AnalysisTaskService) List(ctx context.Context, userID string, role models.UserRole, filter models.AnalysisTaskFilter) ([]models.AnalysisTask, int, error) {
	if role != models.RoleAdmin {
		filter.UserID = userID
	}
	tasks, total, err := s.repo.ListTasks(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, total, nil
}

// ResolveDownload validates a signed token and opens the referenced report.
// The caller owns the returned file handle.
func (s *AnalysisTaskService) ResolveDownload(ctx context.Context, token string) (*models.AnalysisReport, *os.File, error) {
	if s.signer == nil || s.store == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report downloads are not configured")
	}
	taskID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	report, err := s.repo.FindReportByPath(ctx, relPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if report.TaskID != taskID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "report file is no longer available")
	}
	return report, file, nil
}

// RecoverPending re-enqueues tasks left in the queued state, typically
// after a restart lost the in-memory queue.
func (s *AnalysisTaskService) RecoverPending(ctx context.Context) error {
	tasks, err := s.repo.ListTasksByStatus(ctx, models.TaskQueued)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queued tasks")
	}
	for i := range tasks {
		if err := s.enqueue(&tasks[i]); err != nil {
			s.logger.Error("failed to re-enqueue task", zap.String("task_id", tasks[i].ID), zap.Error(err))
		}
	}
	if len(tasks) > 0 {
		s.logger.Info("re-enqueued pending analysis tasks", zap.Int("count", len(tasks)))
	}
	return nil
}

// StartCleanup periodically removes report files older than ttl. Stops when
// the context is cancelled.
func (s *AnalysisTaskService) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	if s.store == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.store.CleanupOlderThan(ttl)
				if err != nil {
					s.logger.Error("report cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

// Handle is the worker entrypoint. The job payload is the task identifier.
func (s *AnalysisTaskService) Handle(ctx context.Context, job jobs.Job) error {
	task, err := s.repo.FindTaskByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("queued task no longer exists", zap.String("task_id", job.ID))
			return nil
		}
		return fmt.Errorf("load task %s: %w", job.ID, err)
	}
	if task.Status == models.TaskCompleted {
		return nil
	}

	if err := s.repo.UpdateTaskStatus(ctx, task.ID, models.TaskProcessing, 10, nil); err != nil {
		return fmt.Errorf("mark task processing: %w", err)
	}

	if runErr := s.run(ctx, task); runErr != nil {
		reason := runErr.Error()
		if err := s.repo.UpdateTaskStatus(ctx, task.ID, models.TaskFailed, task.Progress, &reason); err != nil {
			s.logger.Error("failed to mark task failed", zap.String("task_id", task.ID), zap.Error(err))
		}
		return fmt.Errorf("run task %s: %w", task.ID, runErr)
	}
	return nil
}

func (s *AnalysisTaskService) run(ctx context.Context, task *models.AnalysisTask) error {
	user, err := s.users.FindByID(ctx, task.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task owner no longer exists")
		}
		return fmt.Errorf("load task owner: %w", err)
	}

	var (
		results json.RawMessage
		dataset export.Dataset
		title   string
		format  string
	)

	switch task.TaskType {
	case models.TaskStudentTrend:
		var params models.StudentTrendParams
		if err := json.Unmarshal(task.Parameters, &params); err != nil {
			return fmt.Errorf("decode parameters: %w", err)
		}
		subjectID := ""
		if params.SubjectID != nil {
			subjectID = *params.SubjectID
		}
		trend, err := s.analytics.StudentTrend(ctx, user.ID, user.Role, params.StudentID, subjectID, params.Limit)
		if err != nil {
			return err
		}
		results, err = json.Marshal(trend)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		dataset = trendDataset(trend)
		title = fmt.Sprintf("%s Score Trend", trend.StudentName)
		format = params.Format

	case models.TaskClassReport:
		var params models.ClassReportParams
		if err := json.Unmarshal(task.Parameters, &params); err != nil {
			return fmt.Errorf("decode parameters: %w", err)
		}
		report, err := s.analytics.ClassScores(ctx, user.ID, user.Role, params.ClassID, params.ExamID, "")
		if err != nil {
			return err
		}
		results, err = json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		dataset = classReportDataset(report)
		title = fmt.Sprintf("%s Exam Report", report.ClassName)
		format = params.Format

	default:
		return fmt.Errorf("unsupported task type %q", task.TaskType)
	}

	if err := s.repo.UpdateTaskStatus(ctx, task.ID, models.TaskProcessing, 60, nil); err != nil {
		s.logger.Warn("failed to update task progress", zap.String("task_id", task.ID), zap.Error(err))
	}

	if err := s.writeReport(ctx, task, title, format, dataset); err != nil {
		return err
	}
	if err := s.repo.CompleteTask(ctx, task.ID, results); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	s.logger.Info("analysis task completed", zap.String("task_id", task.ID), zap.String("task_type", string(task.TaskType)))
	return nil
}

func (s *AnalysisTaskService) writeReport(ctx context.Context, task *models.AnalysisTask, title, format string, dataset export.Dataset) error {
	if s.store == nil {
		return nil
	}
	if format == "" {
		format = "xlsx"
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "xlsx":
		data, err = excel.Render(excel.Sheet{Name: "Report", Title: title, Headers: dataset.Headers, Rows: datasetRows(dataset)})
	case "pdf":
		data, err = export.PDF(dataset, title)
	case "csv":
		data, err = export.CSV(dataset)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
	if err != nil {
		return fmt.Errorf("render %s report: %w", format, err)
	}

	relPath := fmt.Sprintf("%s/%s.%s", time.Now().UTC().Format("2006-01"), task.ID, format)
	if _, err := s.store.Save(relPath, data); err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	report := &models.AnalysisReport{
		TaskID:     task.ID,
		ReportType: string(task.TaskType),
		Title:      title,
		Format:     format,
		FilePath:   relPath,
		Size:       int64(len(data)),
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return fmt.Errorf("record report: %w", err)
	}
	return nil
}

// trendDataset flattens a student trend into one row per exam sitting with
// a column per subject.
func trendDataset(trend *models.StudentTrendAnalytics) export.Dataset {
	headers := []string{"Exam"}
	for _, series := range trend.Series {
		headers = append(headers, series.SubjectName)
	}
	rows := make([]map[string]string, 0, len(trend.ExamLabels))
	for i, label := range trend.ExamLabels {
		row := map[string]string{"Exam": label}
		for _, series := range trend.Series {
			value := "-"
			if i < len(series.Scores) && series.Scores[i] != nil {
				value = formatScore(*series.Scores[i])
			}
			row[series.SubjectName] = value
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// classReportDataset summarises per-subject statistics, overall last.
func classReportDataset(report *models.ClassScoresAnalytics) export.Dataset {
	headers := []string{"Subject", "Count", "Mean", "Median", "Min", "Max", "Std Dev", "Pass Rate", "Excellent Rate"}
	subjects := report.Subjects
	if report.Overall != nil {
		subjects = append(subjects, *report.Overall)
	}
	rows := make([]map[string]string, 0, len(subjects))
	for _, subject := range subjects {
		rows = append(rows, map[string]string{
			"Subject":        subject.SubjectName,
			"Count":          strconv.Itoa(subject.Count),
			"Mean":           formatScore(subject.Mean),
			"Median":         formatScore(subject.Median),
			"Min":            formatScore(subject.Min),
			"Max":            formatScore(subject.Max),
			"Std Dev":        fmt.Sprintf("%.2f", subject.StdDev),
			"Pass Rate":      fmt.Sprintf("%.1f%%", subject.PassRate),
			"Excellent Rate": fmt.Sprintf("%.1f%%", subject.ExcellentRate),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func datasetRows(dataset export.Dataset) [][]string {
	rows := make([][]string, 0, len(dataset.Rows))
	for _, row := range dataset.Rows {
		record := make([]string, len(dataset.Headers))
		for i, header := range dataset.Headers {
			record[i] = row[header]
		}
		rows = append(rows, record)
	}
	return rows
}
