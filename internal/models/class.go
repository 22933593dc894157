package models

import "time"

// Class represents an academic class within a grade level.
type Class struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Code          string    `db:"code" json:"code"`
	Capacity      int       `db:"capacity" json:"capacity"`
	GradeID       string    `db:"grade_id" json:"grade_id"`
	HeadteacherID *string   `db:"headteacher_id" json:"headteacher_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with joined display fields.
type ClassDetail struct {
	Class
	GradeName       string  `db:"grade_name" json:"grade_name"`
	HeadteacherName *string `db:"headteacher_name" json:"headteacher_name,omitempty"`
	StudentCount    int     `db:"student_count" json:"student_count"`
}

// ClassTeacher maps a subject teacher onto a class.
type ClassTeacher struct {
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassTeacherDetail includes teacher and subject info for responses.
type ClassTeacherDetail struct {
	ClassID     string  `db:"class_id" json:"class_id"`
	TeacherID   string  `db:"teacher_id" json:"teacher_id"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherCode *string `db:"teacher_code" json:"teacher_code,omitempty"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	GradeID  string
	Search   string
	Page     int
	PageSize int
}

// CreateClassRequest payload for creating a class.
type CreateClassRequest struct {
	Name          string  `json:"name" validate:"required,max=64"`
	Code          string  `json:"code" validate:"required,max=32"`
	Capacity      int     `json:"capacity" validate:"omitempty,min=1,max=200"`
	GradeID       string  `json:"grade_id" validate:"required,uuid"`
	HeadteacherID *string `json:"headteacher_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateClassRequest carries partial class updates.
type UpdateClassRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=64"`
	Code          *string `json:"code,omitempty" validate:"omitempty,max=32"`
	Capacity      *int    `json:"capacity,omitempty" validate:"omitempty,min=1,max=200"`
	GradeID       *string `json:"grade_id,omitempty" validate:"omitempty,uuid"`
	HeadteacherID *string `json:"headteacher_id,omitempty" validate:"omitempty,uuid"`
}
