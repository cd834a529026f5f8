package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Intake completion statuses.
const (
	IntakeStatusPartial  = "partial"
	IntakeStatusComplete = "complete"
)

// Intake holds the structured answers collected during an AI-assisted
// conversation. One intake per lead. Answers accumulate monotonically: new
// answers merge into the existing map, they never replace it.
type Intake struct {
	ID               string         `json:"id" gorm:"primaryKey;type:text"`
	OrgID            string         `json:"org_id" gorm:"index;type:text" validate:"required"`
	LeadID           string         `json:"lead_id" gorm:"uniqueIndex;type:text" validate:"required"`
	Answers          datatypes.JSON `json:"answers,omitempty" gorm:"type:jsonb"`
	CompletionStatus string         `json:"completion_status" gorm:"type:text;default:partial"`
	CreatedAt        time.Time      `json:"created_at,omitempty" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at,omitempty" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the Intake model.
func (Intake) TableName() string {
	return "intakes"
}

// AnswersMap decodes the stored answers into a map. A nil or empty column
// decodes to an empty map, never an error.
func (i Intake) AnswersMap() (map[string]interface{}, error) {
	if len(i.Answers) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(i.Answers, &m); err != nil {
		return nil, fmt.Errorf("decode intake answers: %w", err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

// IsComplete reports whether intake collection has finished.
func (i Intake) IsComplete() bool {
	return i.CompletionStatus == IntakeStatusComplete
}
