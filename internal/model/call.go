package model

import (
	"time"

	"gorm.io/datatypes"
)

// Webhook/telephony providers.
const (
	ProviderTwilio         = "twilio"
	ProviderVapi           = "vapi"
	ProviderOpenAIRealtime = "openai_realtime"
)

// Call statuses.
const (
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
)

// Call records a telephony session. ProviderCallID is the dedup key against
// the originating provider; (provider, provider_call_id) is unique.
type Call struct {
	ID              string     `json:"id" gorm:"primaryKey;type:text"`
	OrgID           string     `json:"org_id" gorm:"index;type:text" validate:"required"`
	LeadID          string     `json:"lead_id,omitempty" gorm:"index;type:text"`
	Provider        string     `json:"provider" gorm:"uniqueIndex:idx_calls_provider_call;type:text" validate:"required"`
	ProviderCallID  string     `json:"provider_call_id" gorm:"uniqueIndex:idx_calls_provider_call;type:text" validate:"required"`
	Direction       string     `json:"direction,omitempty" gorm:"type:text;default:inbound"`
	FromE164        string     `json:"from_e164,omitempty" gorm:"type:text"`
	ToE164          string     `json:"to_e164,omitempty" gorm:"type:text"`
	Status          string     `json:"status" gorm:"type:text;default:in_progress"`
	StartedAt       time.Time  `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	Summary         string     `json:"summary,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Call model.
func (Call) TableName() string {
	return "calls"
}

// Interaction kinds.
const (
	InteractionKindInbound      = "inbound_contact"
	InteractionKindWarmTransfer = "warm_transfer"
	InteractionKindNote         = "note"
)

// Interaction statuses.
const (
	InteractionStatusCompleted = "completed"
	InteractionStatusPending   = "pending"
)

// Interaction is a dated touchpoint on a lead: the initial inbound contact, a
// pending warm transfer, a staff note. Metadata carries kind-specific detail
// such as the transfer reason and urgency.
type Interaction struct {
	ID        string         `json:"id" gorm:"primaryKey;type:text"`
	OrgID     string         `json:"org_id" gorm:"index;type:text" validate:"required"`
	LeadID    string         `json:"lead_id" gorm:"index;type:text" validate:"required"`
	CallID    string         `json:"call_id,omitempty" gorm:"index;type:text"`
	Channel   string         `json:"channel,omitempty" gorm:"type:text"`
	Kind      string         `json:"kind" gorm:"type:text" validate:"required"`
	Status    string         `json:"status" gorm:"type:text;default:completed"`
	Notes     string         `json:"notes,omitempty" gorm:"type:text"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the Interaction model.
func (Interaction) TableName() string {
	return "interactions"
}
