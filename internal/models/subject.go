package models

import "time"

// Subject represents a taught subject (e.g. Mathematics).
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter defines filter criteria for listing subjects.
type SubjectFilter struct {
	Search   string
	Page     int
	PageSize int
}

// CreateSubjectRequest payload for creating a subject.
type CreateSubjectRequest struct {
	Name        string  `json:"name" validate:"required,max=64"`
	Code        string  `json:"code" validate:"required,max=32"`
	Description *string `json:"description,omitempty"`
}

// UpdateSubjectRequest carries partial subject updates.
type UpdateSubjectRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=64"`
	Code        *string `json:"code,omitempty" validate:"omitempty,max=32"`
	Description *string `json:"description,omitempty"`
}
