package models

import "time"

// Student represents an enrolled student linked to a user account.
type Student struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	StudentCode string     `db:"student_code" json:"student_code"`
	Gender      *string    `db:"gender" json:"gender,omitempty"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	ParentName  *string    `db:"parent_name" json:"parent_name,omitempty"`
	ParentPhone *string    `db:"parent_phone" json:"parent_phone,omitempty"`
	UserID      string     `db:"user_id" json:"user_id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentDetail extends Student with joined display fields.
type StudentDetail struct {
	Student
	ClassName string `db:"class_name" json:"class_name"`
	GradeID   string `db:"grade_id" json:"grade_id"`
	GradeName string `db:"grade_name" json:"grade_name"`
}

// StudentFilter defines filter criteria for listing students.
type StudentFilter struct {
	ClassID  string
	GradeID  string
	Search   string
	Page     int
	PageSize int
}

// CreateStudentRequest payload for enrolling a student.
type CreateStudentRequest struct {
	Name        string     `json:"name" validate:"required,max=64"`
	StudentCode string     `json:"student_code" validate:"required,max=32"`
	Gender      *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	ParentName  *string    `json:"parent_name,omitempty"`
	ParentPhone *string    `json:"parent_phone,omitempty"`
	UserID      string     `json:"user_id" validate:"required,uuid"`
	ClassID     string     `json:"class_id" validate:"required,uuid"`
}

// RosterImportRowError describes one rejected roster row.
type RosterImportRowError struct {
	Row     int    `json:"row"`
	Code    string `json:"student_code"`
	Message string `json:"message"`
}

// RosterImportResult summarises a class roster import.
type RosterImportResult struct {
	CreatedCount int                    `json:"created_count"`
	UpdatedCount int                    `json:"updated_count"`
	ErrorCount   int                    `json:"error_count"`
	ErrorDetails []RosterImportRowError `json:"error_details"`
}

// UpdateStudentRequest carries partial student updates.
type UpdateStudentRequest struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=64"`
	StudentCode *string    `json:"student_code,omitempty" validate:"omitempty,max=32"`
	Gender      *string    `json:"gender,omitempty" validate:"omitempty,oneof=male female"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Address     *string    `json:"address,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	ParentName  *string    `json:"parent_name,omitempty"`
	ParentPhone *string    `json:"parent_phone,omitempty"`
	ClassID     *string    `json:"class_id,omitempty" validate:"omitempty,uuid"`
}
