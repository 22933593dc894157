package models

import "time"

// Score represents one student's score for one exam. The (student, subject,
// exam) triple is unique. Ranking is a cached value refreshed after bulk
// imports; analytics derive ranks from raw scores instead of reading it.
type Score struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	Score     float64   `db:"score" json:"score"`
	Ranking   *int      `db:"ranking" json:"ranking,omitempty"`
	Comments  *string   `db:"comments" json:"comments,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreDetail extends Score with joined display fields.
type ScoreDetail struct {
	Score
	StudentName string    `db:"student_name" json:"student_name"`
	StudentCode string    `db:"student_code" json:"student_code"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	ExamName    string    `db:"exam_name" json:"exam_name"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	TotalScore  float64   `db:"total_score" json:"total_score"`
}

// ScoreFilter defines filter criteria for listing scores.
type ScoreFilter struct {
	StudentID string
	SubjectID string
	ExamID    string
	ClassID   string
	Page      int
	PageSize  int
}

// CreateScoreRequest payload for a single score entry.
type CreateScoreRequest struct {
	StudentID string  `json:"student_id" validate:"required,uuid"`
	SubjectID string  `json:"subject_id" validate:"required,uuid"`
	ExamID    string  `json:"exam_id" validate:"required,uuid"`
	Score     float64 `json:"score" validate:"gte=0"`
	Comments  *string `json:"comments,omitempty"`
}

// UpdateScoreRequest carries partial score updates.
type UpdateScoreRequest struct {
	Score    *float64 `json:"score,omitempty" validate:"omitempty,gte=0"`
	Comments *string  `json:"comments,omitempty"`
}

// CohortScoreRow is the flat row analytics queries return: one student's
// score on one exam, with enough context to group by subject, exam or class.
type CohortScoreRow struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	StudentCode string    `db:"student_code" json:"student_code"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	ExamID      string    `db:"exam_id" json:"exam_id"`
	ExamName    string    `db:"exam_name" json:"exam_name"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	TotalScore  float64   `db:"total_score" json:"total_score"`
	Score       float64   `db:"score" json:"score"`
}

// CohortFilter scopes the flat score-row queries analytics run. Empty
// fields are ignored; slice fields expand to IN clauses.
type CohortFilter struct {
	ClassID   string
	ClassIDs  []string
	GradeID   string
	StudentID string
	SubjectID string
	ExamID    string
	ExamIDs   []string
}

// RosterEntry is a class roster row used to detect absent students.
type RosterEntry struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	StudentCode string `db:"student_code" json:"student_code"`
	ClassID     string `db:"class_id" json:"class_id"`
}

// ScoreImportRowError records one rejected row of a bulk import.
type ScoreImportRowError struct {
	Row     int    `json:"row"`
	Code    string `json:"student_code"`
	Message string `json:"message"`
}

// ScoreImportResult summarises a bulk import: valid rows are applied even
// when others fail.
type ScoreImportResult struct {
	SuccessCount int                   `json:"success_count"`
	ErrorCount   int                   `json:"error_count"`
	ErrorDetails []ScoreImportRowError `json:"error_details"`
}

// ScoreUpsert is one validated row ready to be written.
type ScoreUpsert struct {
	StudentID string
	SubjectID string
	ExamID    string
	Score     float64
}
