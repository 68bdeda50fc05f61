package models

import (
	"gigbook/src/types"
	"time"
)

// WebhookEvent records every processed external event id. The unique index is
// the idempotency guard: a redelivered event inserts zero rows and is acked
// without reapplying effects.
type WebhookEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	EventID     string    `gorm:"uniqueIndex" json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`

	types.Timestamps
}
