package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records a state-changing action against the canonical data model.
// Every mutating tool-call writes one. Audit writes are best-effort: failures
// are logged and swallowed so they can never fail the primary operation.
type AuditLog struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrgID      string         `json:"org_id" gorm:"index;type:text"`
	Actor      string         `json:"actor,omitempty" gorm:"type:text"` // e.g. "voice_agent"
	Action     string         `json:"action" gorm:"type:text" validate:"required"`
	EntityType string         `json:"entity_type,omitempty" gorm:"type:text"`
	EntityID   string         `json:"entity_id,omitempty" gorm:"index;type:text"`
	Detail     datatypes.JSON `json:"detail,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the AuditLog model.
func (AuditLog) TableName() string {
	return "audit_logs"
}
