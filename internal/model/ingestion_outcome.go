package model

import (
	"time"

	"gorm.io/datatypes"
)

// Ingestion outcome statuses.
const (
	OutcomePersisted = "persisted"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// IngestionOutcome is a write-only audit record of a webhook processing
// attempt. The raw payload is stored only for failed/skipped outcomes to
// bound storage growth while keeping failures debuggable. Writes are
// best-effort; a failure to record an outcome must never fail the ingestion
// it describes.
type IngestionOutcome struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Provider   string         `json:"provider" gorm:"index;type:text"`
	ExternalID string         `json:"external_id,omitempty" gorm:"type:text"`
	OrgID      string         `json:"org_id,omitempty" gorm:"index;type:text"`
	Status     string         `json:"status" gorm:"type:text" validate:"required,oneof=persisted failed skipped"`
	Error      string         `json:"error,omitempty" gorm:"type:text"`
	Payload    datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the IngestionOutcome model.
func (IngestionOutcome) TableName() string {
	return "ingestion_outcomes"
}
