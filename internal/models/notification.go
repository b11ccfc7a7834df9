package models

import "time"

// Notification is an append-only in-app message tied to an exam event.
// Rows are never updated or deduplicated; one row per recipient per event.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	ExamID      string    `db:"exam_id" json:"exam_id"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// NotificationFilter describes query params for a user's inbox.
type NotificationFilter struct {
	RecipientID string
	Page        int
	PageSize    int
}
