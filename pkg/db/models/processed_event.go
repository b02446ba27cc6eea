package models

import "time"

// ProcessedEvent is the durable idempotency marker for a webhook event.
// Rows are created once and never mutated; re-inserts are ignored.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
