package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// RandomJSONBMap encodes a map for jsonb test columns.
func RandomJSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// RandomE164 generates a plausible US E.164 number for testing.
func RandomE164() string {
	return "+1" + gofakeit.Numerify("##########")
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewOrganization creates a new Organization instance with default fake data.
func NewOrganization(overrideDefaults ...*Organization) *Organization {
	base := &Organization{
		ID:        gofakeit.UUID(),
		Name:      gofakeit.Company() + " Law",
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.Name = ovr.Name
		if len(ovr.QualificationRules) > 0 {
			base.QualificationRules = ovr.QualificationRules
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewOrgPhoneNumber creates a new OrgPhoneNumber instance with default fake data.
func NewOrgPhoneNumber(overrideDefaults ...*OrgPhoneNumber) *OrgPhoneNumber {
	base := &OrgPhoneNumber{
		ID:             gofakeit.UUID(),
		OrgID:          gofakeit.UUID(),
		PhoneE164:      RandomE164(),
		Provider:       gofakeit.RandomString([]string{ProviderTwilio, ProviderVapi, ProviderOpenAIRealtime}),
		Label:          gofakeit.Word(),
		InboundEnabled: true,
		CreatedAt:      utils.Now(),
		UpdatedAt:      utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.PhoneE164 = ovr.PhoneE164
		base.Provider = ovr.Provider
		base.Label = ovr.Label
		base.InboundEnabled = ovr.InboundEnabled
	}
	return base
}

// NewContact creates a new Contact instance with default fake data.
func NewContact(overrideDefaults ...*Contact) *Contact {
	base := &Contact{
		ID:        gofakeit.UUID(),
		OrgID:     gofakeit.UUID(),
		Name:      gofakeit.Name(),
		PhoneE164: RandomE164(),
		Email:     gofakeit.Email(),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		// Allow overriding with empty string by direct assignment
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.Name = ovr.Name
		base.PhoneE164 = ovr.PhoneE164
		base.Email = ovr.Email

		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewLead creates a new Lead instance with default fake data.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:            gofakeit.UUID(),
		OrgID:         gofakeit.UUID(),
		ContactID:     gofakeit.UUID(),
		Status:        LeadStatusNew,
		Priority:      LeadPriorityMedium,
		SourceChannel: gofakeit.RandomString([]string{SourceChannelVoice, SourceChannelSMS, SourceChannelWeb}),
		PracticeArea:  gofakeit.RandomString([]string{"personal_injury", "family_law", "criminal_defense", "employment"}),
		CreatedAt:     utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Minute),
		UpdatedAt:     utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.ContactID = ovr.ContactID
		base.SourceChannel = ovr.SourceChannel
		base.PracticeArea = ovr.PracticeArea
		base.Summary = ovr.Summary
		base.Disposition = ovr.Disposition

		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Priority != "" {
			base.Priority = ovr.Priority
		}
		if ovr.Score != nil {
			base.Score = ovr.Score
		}
		if ovr.QualifiedAt != nil {
			base.QualifiedAt = ovr.QualifiedAt
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewIntake creates a new Intake instance with default fake data.
func NewIntake(overrideDefaults ...*Intake) *Intake {
	base := &Intake{
		ID:     gofakeit.UUID(),
		OrgID:  gofakeit.UUID(),
		LeadID: gofakeit.UUID(),
		Answers: RandomJSONBMap(map[string]interface{}{
			"incident_date": gofakeit.Date().Format("2006-01-02"),
			"description":   gofakeit.Sentence(8),
		}),
		CompletionStatus: IntakeStatusPartial,
		CreatedAt:        utils.Now(),
		UpdatedAt:        utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.LeadID = ovr.LeadID
		if len(ovr.Answers) > 0 {
			base.Answers = ovr.Answers
		}
		if ovr.CompletionStatus != "" {
			base.CompletionStatus = ovr.CompletionStatus
		}
	}
	return base
}

// NewCall creates a new Call instance with default fake data.
func NewCall(overrideDefaults ...*Call) *Call {
	base := &Call{
		ID:             gofakeit.UUID(),
		OrgID:          gofakeit.UUID(),
		Provider:       gofakeit.RandomString([]string{ProviderTwilio, ProviderVapi, ProviderOpenAIRealtime}),
		ProviderCallID: gofakeit.UUID(),
		Direction:      "inbound",
		FromE164:       RandomE164(),
		ToE164:         RandomE164(),
		Status:         CallStatusInProgress,
		StartedAt:      utils.Now().Add(-time.Duration(gofakeit.Number(1, 30)) * time.Minute),
		CreatedAt:      utils.Now(),
		UpdatedAt:      utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.LeadID = ovr.LeadID
		base.Provider = ovr.Provider
		base.ProviderCallID = ovr.ProviderCallID
		base.FromE164 = ovr.FromE164
		base.ToE164 = ovr.ToE164
		base.Summary = ovr.Summary

		if ovr.Direction != "" {
			base.Direction = ovr.Direction
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if !ovr.StartedAt.IsZero() {
			base.StartedAt = ovr.StartedAt
		}
		if ovr.EndedAt != nil {
			base.EndedAt = ovr.EndedAt
		}
		if ovr.DurationSeconds != 0 {
			base.DurationSeconds = ovr.DurationSeconds
		}
	}
	return base
}

// NewInteraction creates a new Interaction instance with default fake data.
func NewInteraction(overrideDefaults ...*Interaction) *Interaction {
	base := &Interaction{
		ID:        gofakeit.UUID(),
		OrgID:     gofakeit.UUID(),
		LeadID:    gofakeit.UUID(),
		CallID:    gofakeit.UUID(),
		Channel:   SourceChannelVoice,
		Kind:      InteractionKindInbound,
		Status:    InteractionStatusCompleted,
		Notes:     gofakeit.Sentence(6),
		CreatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.LeadID = ovr.LeadID
		base.CallID = ovr.CallID
		base.Notes = ovr.Notes
		if ovr.Channel != "" {
			base.Channel = ovr.Channel
		}
		if ovr.Kind != "" {
			base.Kind = ovr.Kind
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if len(ovr.Metadata) > 0 {
			base.Metadata = ovr.Metadata
		}
	}
	return base
}

// NewWebhookEvent creates a new WebhookEvent instance with default fake data.
func NewWebhookEvent(overrideDefaults ...*WebhookEvent) *WebhookEvent {
	base := &WebhookEvent{
		Provider:   gofakeit.RandomString([]string{ProviderTwilio, ProviderVapi, ProviderOpenAIRealtime}),
		ExternalID: gofakeit.UUID(),
		EventType:  gofakeit.Word(),
		ReceivedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.Provider = ovr.Provider
		base.ExternalID = ovr.ExternalID
		base.EventType = ovr.EventType
		if len(ovr.Payload) > 0 {
			base.Payload = ovr.Payload
		}
	}
	return base
}

// NewIngestionOutcome creates a new IngestionOutcome instance with default fake data.
func NewIngestionOutcome(overrideDefaults ...*IngestionOutcome) *IngestionOutcome {
	base := &IngestionOutcome{
		Provider:   gofakeit.RandomString([]string{ProviderTwilio, ProviderVapi, ProviderOpenAIRealtime}),
		ExternalID: gofakeit.UUID(),
		OrgID:      gofakeit.UUID(),
		Status:     OutcomePersisted,
		CreatedAt:  utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.Provider = ovr.Provider
		base.ExternalID = ovr.ExternalID
		base.OrgID = ovr.OrgID
		base.Error = ovr.Error
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if len(ovr.Payload) > 0 {
			base.Payload = ovr.Payload
		}
	}
	return base
}

// NewAuditLog creates a new AuditLog instance with default fake data.
func NewAuditLog(overrideDefaults ...*AuditLog) *AuditLog {
	base := &AuditLog{
		OrgID:      gofakeit.UUID(),
		Actor:      "voice_agent",
		Action:     gofakeit.RandomString([]string{"lead.created", "lead.updated", "intake.answers_saved"}),
		EntityType: "lead",
		EntityID:   gofakeit.UUID(),
		CreatedAt:  utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		base.OrgID = ovr.OrgID
		base.Actor = ovr.Actor
		base.Action = ovr.Action
		base.EntityType = ovr.EntityType
		base.EntityID = ovr.EntityID
		if len(ovr.Detail) > 0 {
			base.Detail = ovr.Detail
		}
	}
	return base
}
