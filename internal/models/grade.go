package models

import "time"

// Grade represents a grade level (e.g. "Grade 7") grouping classes.
type Grade struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter defines filter criteria for listing grade levels.
type GradeFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CreateGradeRequest payload for creating a grade level.
type CreateGradeRequest struct {
	Name        string  `json:"name" validate:"required,max=64"`
	Code        string  `json:"code" validate:"required,max=32"`
	Description *string `json:"description,omitempty"`
}

// UpdateGradeRequest carries partial grade level updates.
type UpdateGradeRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=64"`
	Code        *string `json:"code,omitempty" validate:"omitempty,max=32"`
	Description *string `json:"description,omitempty"`
}
