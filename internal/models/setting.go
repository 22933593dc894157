package models

import "time"

// Setting is a keyed configuration value editable at runtime.
type Setting struct {
	ID          string    `db:"id" json:"id"`
	Key         string    `db:"key" json:"key"`
	Value       *string   `db:"value" json:"value,omitempty"`
	ValueType   string    `db:"value_type" json:"value_type"`
	Description *string   `db:"description" json:"description,omitempty"`
	Group       *string   `db:"group_name" json:"group,omitempty"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	IsSystem    bool      `db:"is_system" json:"is_system"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertSettingRequest payload for creating or updating a setting value.
type UpsertSettingRequest struct {
	Value       *string `json:"value,omitempty"`
	ValueType   string  `json:"value_type" validate:"omitempty,oneof=string int float bool json"`
	Description *string `json:"description,omitempty"`
	Group       *string `json:"group,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

// BatchSettingItem is one entry of a batch settings update.
type BatchSettingItem struct {
	Key   string  `json:"key" validate:"required,max=64"`
	Value *string `json:"value,omitempty"`
}
