package model

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the idempotency ledger. The unique (provider, external_id)
// index is the sole duplicate-suppression mechanism: concurrent deliveries of
// the same event race to insert, exactly one wins, and the loser's constraint
// violation is translated into "already processed" by the gate. No locks.
type WebhookEvent struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Provider   string         `json:"provider" gorm:"uniqueIndex:idx_webhook_events_provider_ext;type:text" validate:"required"`
	ExternalID string         `json:"external_id" gorm:"uniqueIndex:idx_webhook_events_provider_ext;type:text" validate:"required"`
	EventType  string         `json:"event_type,omitempty" gorm:"type:text"`
	Payload    datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	ReceivedAt time.Time      `json:"received_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the WebhookEvent model.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
