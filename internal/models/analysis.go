package models

import (
	"encoding/json"
	"time"
)

// AnalysisTaskStatus tracks the lifecycle of a background analysis run.
type AnalysisTaskStatus string

const (
	TaskQueued     AnalysisTaskStatus = "queued"
	TaskProcessing AnalysisTaskStatus = "processing"
	TaskCompleted  AnalysisTaskStatus = "completed"
	TaskFailed     AnalysisTaskStatus = "failed"
)

// AnalysisTaskType enumerates the supported analysis task kinds. Unsupported
// types are rejected when the task is created, never at execution time.
type AnalysisTaskType string

const (
	TaskStudentTrend AnalysisTaskType = "student_trend"
	TaskClassReport  AnalysisTaskType = "class_report"
)

// Valid reports whether the task type is supported.
func (t AnalysisTaskType) Valid() bool {
	switch t {
	case TaskStudentTrend, TaskClassReport:
		return true
	}
	return false
}

// AnalysisTask is a persisted background analysis run.
type AnalysisTask struct {
	ID          string             `db:"id" json:"id"`
	TaskType    AnalysisTaskType   `db:"task_type" json:"task_type"`
	UserID      string             `db:"user_id" json:"user_id"`
	Status      AnalysisTaskStatus `db:"status" json:"status"`
	Progress    int                `db:"progress" json:"progress"`
	Parameters  json.RawMessage    `db:"parameters" json:"parameters"`
	Results     json.RawMessage    `db:"results" json:"results,omitempty"`
	Error       *string            `db:"error" json:"error,omitempty"`
	CompletedAt *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// AnalysisReport is a generated report file attached to a completed task.
type AnalysisReport struct {
	ID         string    `db:"id" json:"id"`
	TaskID     string    `db:"task_id" json:"task_id"`
	ReportType string    `db:"report_type" json:"report_type"`
	Title      string    `db:"title" json:"title"`
	Format     string    `db:"format" json:"format"`
	FilePath   string    `db:"file_path" json:"-"`
	Size       int64     `db:"size" json:"size"`
	IsPublic   bool      `db:"is_public" json:"is_public"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AnalysisTaskDetail bundles a task with its generated reports and, when a
// signer is configured, download URLs for each report.
type AnalysisTaskDetail struct {
	AnalysisTask
	Reports []AnalysisReportLink `json:"reports"`
}

// AnalysisReportLink pairs a report with its signed download token.
type AnalysisReportLink struct {
	AnalysisReport
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// StudentTrendParams are the validated parameters of a student_trend task.
type StudentTrendParams struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	SubjectID *string `json:"subject_id,omitempty" validate:"omitempty,uuid"`
	Limit     int     `json:"limit" validate:"omitempty,min=1,max=50"`
	Format    string  `json:"format" validate:"omitempty,oneof=xlsx pdf csv"`
}

// ClassReportParams are the validated parameters of a class_report task.
type ClassReportParams struct {
	ClassID string `json:"class_id" validate:"required,uuid"`
	ExamID  string `json:"exam_id" validate:"required,uuid"`
	Format  string `json:"format" validate:"omitempty,oneof=xlsx pdf csv"`
}

// CreateAnalysisTaskRequest payload for enqueueing an analysis task.
type CreateAnalysisTaskRequest struct {
	TaskType   AnalysisTaskType `json:"task_type" validate:"required"`
	Parameters json.RawMessage  `json:"parameters" validate:"required"`
}

// AnalysisTaskFilter defines filter criteria for listing tasks.
type AnalysisTaskFilter struct {
	UserID   string
	Status   string
	TaskType string
	Page     int
	PageSize int
}
