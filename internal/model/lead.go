package model

import (
	"time"
)

// Lead statuses. Transitions are driven by qualification results and by
// tool-call actions during a live call; identity (ID, ContactID, OrgID) is
// immutable once created.
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusQualified   = "qualified"
	LeadStatusUnqualified = "unqualified"
	LeadStatusConverted   = "converted"
	LeadStatusDeclined    = "declined"
)

// Lead priorities.
const (
	LeadPriorityLow    = "low"
	LeadPriorityMedium = "medium"
	LeadPriorityHigh   = "high"
	LeadPriorityUrgent = "urgent"
)

// Source channels for leads.
const (
	SourceChannelVoice = "voice"
	SourceChannelSMS   = "sms"
	SourceChannelWeb   = "web"
)

// Lead is a case inquiry. It belongs to exactly one Contact and one
// Organization. Score and Disposition are set by the qualification engine and
// recomputed from current state each run.
type Lead struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	OrgID         string     `json:"org_id" gorm:"index;type:text" validate:"required"`
	ContactID     string     `json:"contact_id" gorm:"index;type:text" validate:"required"`
	Status        string     `json:"status" gorm:"type:text;default:new"`
	Priority      string     `json:"priority,omitempty" gorm:"type:text;default:medium"`
	SourceChannel string     `json:"source_channel,omitempty" gorm:"type:text"`
	PracticeArea  string     `json:"practice_area,omitempty" gorm:"type:text"`
	Summary       string     `json:"summary,omitempty" gorm:"type:text"`
	Score         *int       `json:"score,omitempty" gorm:"type:integer"`
	Disposition   string     `json:"disposition,omitempty" gorm:"type:text"` // accept, review, decline
	QualifiedAt   *time.Time `json:"qualified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Lead model.
func (Lead) TableName() string {
	return "leads"
}

// ValidLeadStatus reports whether s is a known lead status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusUnqualified, LeadStatusConverted, LeadStatusDeclined:
		return true
	}
	return false
}

// ValidLeadPriority reports whether p is a known lead priority.
func ValidLeadPriority(p string) bool {
	switch p {
	case LeadPriorityLow, LeadPriorityMedium, LeadPriorityHigh, LeadPriorityUrgent:
		return true
	}
	return false
}
