package models

import "time"

// Notification represents a message sent to one user or broadcast to all
// (RecipientID null means broadcast).
type Notification struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Content     string     `db:"content" json:"content"`
	Type        string     `db:"type" json:"type"`
	Level       string     `db:"level" json:"level"`
	SenderID    *string    `db:"sender_id" json:"sender_id,omitempty"`
	RecipientID *string    `db:"recipient_id" json:"recipient_id,omitempty"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	IsDeleted   bool       `db:"is_deleted" json:"-"`
	ExpireAt    *time.Time `db:"expire_at" json:"expire_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// NotificationFilter defines filter criteria for listing notifications.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Type        string
	Page        int
	PageSize    int
}

// CreateNotificationRequest payload for sending a notification. Omitting
// recipient_id broadcasts to all users.
type CreateNotificationRequest struct {
	Title       string     `json:"title" validate:"required,max=128"`
	Content     string     `json:"content" validate:"required"`
	Type        string     `json:"type" validate:"omitempty,max=32"`
	Level       string     `json:"level" validate:"omitempty,oneof=info warning error"`
	RecipientID *string    `json:"recipient_id,omitempty" validate:"omitempty,uuid"`
	ExpireAt    *time.Time `json:"expire_at,omitempty"`
}
