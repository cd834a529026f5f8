package model

import (
	"time"

	"gorm.io/datatypes"
)

// Organization is the tenant boundary. Every other row carries its ID.
// QualificationRules holds the per-org scorer configuration as JSON; it is
// decoded by the qualification engine at scoring time so rule edits take
// effect without a restart.
type Organization struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:text"`
	Name               string         `json:"name" gorm:"type:text" validate:"required"`
	QualificationRules datatypes.JSON `json:"qualification_rules,omitempty" gorm:"type:jsonb"`
	CreatedAt          time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt          time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Organization model.
func (Organization) TableName() string {
	return "organizations"
}

// OrgPhoneNumber maps an E.164 number to the organization that owns it.
// Inbound webhooks are routed by looking up the called number here; rows with
// InboundEnabled=false never match, so a number can be parked without
// deleting it.
type OrgPhoneNumber struct {
	ID             string    `json:"id" gorm:"primaryKey;type:text"`
	OrgID          string    `json:"org_id" gorm:"index;type:text" validate:"required"`
	PhoneE164      string    `json:"phone_e164" gorm:"uniqueIndex;type:text" validate:"required,phone_e164"`
	Provider       string    `json:"provider,omitempty" gorm:"type:text"` // twilio, vapi, openai
	Label          string    `json:"label,omitempty" gorm:"type:text"`
	InboundEnabled bool      `json:"inbound_enabled" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the OrgPhoneNumber model.
func (OrgPhoneNumber) TableName() string {
	return "org_phone_numbers"
}
