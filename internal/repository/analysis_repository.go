package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// AnalysisRepository provides database access for analysis tasks and the
// report files they produce.
type AnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisTaskColumns = `id, task_type, user_id, status, progress, parameters, results, error, completed_at, created_at, updated_at`

// CreateTask persists a new analysis task in the queued state.
func (r *AnalysisRepository) CreateTask(ctx context.Context, task *models.AnalysisTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.TaskQueued
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `INSERT INTO analysis_tasks (id, task_type, user_id, status, progress, parameters, results, error, completed_at, created_at, updated_at) VALUES (:id, :task_type, :user_id, :status, :progress, :parameters, :results, :error, :completed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create analysis task: %w", err)
	}
	return nil
}

// FindTaskByID returns a task by identifier.
func (r *AnalysisRepository) FindTaskByID(ctx context.Context, id string) (*models.AnalysisTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_tasks WHERE id = $1 LIMIT 1`, analysisTaskColumns)
	var task models.AnalysisTask
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find analysis task: %w", err)
	}
	return &task, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (r *AnalysisRepository) ListTasks(ctx context.Context, filter models.AnalysisTaskFilter) ([]models.AnalysisTask, int, error) {
	baseQuery := `FROM analysis_tasks WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.TaskType != "" {
		conditions = append(conditions, fmt.Sprintf("task_type = $%d", len(args)+1))
		args = append(args, filter.TaskType)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", analysisTaskColumns, baseQuery, pageSize, offset)
	var tasks []models.AnalysisTask
	if err := r.db.SelectContext(ctx, &tasks, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list analysis tasks: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count analysis tasks: %w", err)
	}
	return tasks, total, nil
}

// ListTasksByStatus returns every task in the given status, oldest first.
// Used to re-enqueue queued work after a restart.
func (r *AnalysisRepository) ListTasksByStatus(ctx context.Context, status models.AnalysisTaskStatus) ([]models.AnalysisTask, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_tasks WHERE status = $1 ORDER BY created_at ASC`, analysisTaskColumns)
	var tasks []models.AnalysisTask
	if err := r.db.SelectContext(ctx, &tasks, query, status); err != nil {
		return nil, fmt.Errorf("list analysis tasks by status: %w", err)
	}
	return tasks, nil
}

// UpdateTaskStatus moves a task through its lifecycle.
func (r *AnalysisRepository) UpdateTaskStatus(ctx context.Context, id string, status models.AnalysisTaskStatus, progress int, taskErr *string) error {
	const query = `UPDATE analysis_tasks SET status = $2, progress = $3, error = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, progress, taskErr, time.Now().UTC()); err != nil {
		return fmt.Errorf("update analysis task status: %w", err)
	}
	return nil
}

// CompleteTask stores the results payload and marks the task completed.
func (r *AnalysisRepository) CompleteTask(ctx context.Context, id string, results json.RawMessage) error {
	now := time.Now().UTC()
	const query = `UPDATE analysis_tasks SET status = $2, progress = 100, results = $3, completed_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.TaskCompleted, results, now); err != nil {
		return fmt.Errorf("complete analysis task: %w", err)
	}
	return nil
}

const analysisReportColumns = `id, task_id, report_type, title, format, file_path, size, is_public, created_at`

// CreateReport attaches a generated report file to a task.
func (r *AnalysisRepository) CreateReport(ctx context.Context, report *models.AnalysisReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO analysis_reports (id, task_id, report_type, title, format, file_path, size, is_public, created_at) VALUES (:id, :task_id, :report_type, :title, :format, :file_path, :size, :is_public, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create analysis report: %w", err)
	}
	return nil
}

// ListReportsByTask returns a task's reports, newest first.
func (r *AnalysisRepository) ListReportsByTask(ctx context.Context, taskID string) ([]models.AnalysisReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_reports WHERE task_id = $1 ORDER BY created_at DESC`, analysisReportColumns)
	var reports []models.AnalysisReport
	if err := r.db.SelectContext(ctx, &reports, query, taskID); err != nil {
		return nil, fmt.Errorf("list analysis reports: %w", err)
	}
	return reports, nil
}

// FindReportByPath returns a report by its stored file path.
func (r *AnalysisRepository) FindReportByPath(ctx context.Context, filePath string) (*models.AnalysisReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM analysis_reports WHERE file_path = $1 LIMIT 1`, analysisReportColumns)
	var report models.AnalysisReport
	if err := r.db.GetContext(ctx, &report, query, filePath); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find analysis report: %w", err)
	}
	return &report, nil
}
