package models

import "time"

// Exam represents a single-subject exam sitting. Exams belonging to one
// combined sitting (e.g. "Midterm 2026") share a GroupID.
type Exam struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	TotalScore  float64   `db:"total_score" json:"total_score"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	GroupID     *string   `db:"group_id" json:"group_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ExamDetail extends Exam with joined display fields.
type ExamDetail struct {
	Exam
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// ExamFilter defines filter criteria for listing exams.
type ExamFilter struct {
	SubjectID string
	GroupID   string
	From      *time.Time
	To        *time.Time
	Search    string
	Page      int
	PageSize  int
}

// CreateExamRequest payload for scheduling an exam.
type CreateExamRequest struct {
	Name        string    `json:"name" validate:"required,max=128"`
	Description *string   `json:"description,omitempty"`
	ExamDate    time.Time `json:"exam_date" validate:"required"`
	TotalScore  float64   `json:"total_score" validate:"omitempty,gt=0"`
	SubjectID   string    `json:"subject_id" validate:"required,uuid"`
	GroupID     *string   `json:"group_id,omitempty"`
}

// UpdateExamRequest carries partial exam updates.
type UpdateExamRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=128"`
	Description *string    `json:"description,omitempty"`
	ExamDate    *time.Time `json:"exam_date,omitempty"`
	TotalScore  *float64   `json:"total_score,omitempty" validate:"omitempty,gt=0"`
	GroupID     *string    `json:"group_id,omitempty"`
}
