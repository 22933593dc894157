package models

import "time"

// Teacher represents a subject teacher linked to a user account.
type Teacher struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	TeacherCode string    `db:"teacher_code" json:"teacher_code"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	UserID      string    `db:"user_id" json:"user_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherDetail extends Teacher with joined display fields.
type TeacherDetail struct {
	Teacher
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// TeacherFilter defines filter criteria for listing teachers.
type TeacherFilter struct {
	SubjectID string
	Search    string
	Page      int
	PageSize  int
}

// CreateTeacherRequest payload for registering a teacher.
type CreateTeacherRequest struct {
	Name        string  `json:"name" validate:"required,max=64"`
	TeacherCode string  `json:"teacher_code" validate:"required,max=32"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	UserID      string  `json:"user_id" validate:"required,uuid"`
	SubjectID   string  `json:"subject_id" validate:"required,uuid"`
}

// UpdateTeacherRequest carries partial teacher updates.
type UpdateTeacherRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=64"`
	TeacherCode *string `json:"teacher_code,omitempty" validate:"omitempty,max=32"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	SubjectID   *string `json:"subject_id,omitempty" validate:"omitempty,uuid"`
}
