package storage

import (
	"context"
	"time"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

// OrgRepo defines organization and phone-number routing operations. Routing
// lookups run before tenant context exists, so they take no org scope.
type OrgRepo interface {
	FindByID(ctx context.Context, id string) (*model.Organization, error)
	FindByInboundNumber(ctx context.Context, phoneE164 string) (*model.Organization, error)
	Close(ctx context.Context) error
}

// ContactRepo defines contact storage operations
type ContactRepo interface {
	Save(ctx context.Context, contact model.Contact) error
	Update(ctx context.Context, contact model.Contact) error
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error)
	FindByEmail(ctx context.Context, email string) (*model.Contact, error)
	Close(ctx context.Context) error
}

// LeadRepo defines lead storage operations
type LeadRepo interface {
	Save(ctx context.Context, lead model.Lead) error
	Update(ctx context.Context, leadID string, fields map[string]interface{}) error
	FindByID(ctx context.Context, id string) (*model.Lead, error)
	FindOpenByContact(ctx context.Context, contactID string) (*model.Lead, error)
	ApplyQualification(ctx context.Context, leadID string, score int, disposition string, status string, qualifiedAt time.Time) error
	Close(ctx context.Context) error
}

// IntakeRepo defines intake storage operations
type IntakeRepo interface {
	UpsertAnswers(ctx context.Context, leadID string, answers map[string]interface{}) (*model.Intake, error)
	MarkComplete(ctx context.Context, leadID string) error
	FindByLeadID(ctx context.Context, leadID string) (*model.Intake, error)
	Close(ctx context.Context) error
}

// CallRepo defines call and interaction storage operations
type CallRepo interface {
	Upsert(ctx context.Context, call model.Call) (*model.Call, error)
	FindByProviderCallID(ctx context.Context, provider, providerCallID string) (*model.Call, error)
	CountByLead(ctx context.Context, leadID string) (int, error)
	AttachLead(ctx context.Context, callID, leadID string) error
	SaveInteraction(ctx context.Context, interaction model.Interaction) error
	Close(ctx context.Context) error
}

// WebhookEventRepo is the idempotency gate. InsertOnce returns
// apperrors.ErrDuplicate when the (provider, external_id) pair was already
// recorded.
type WebhookEventRepo interface {
	InsertOnce(ctx context.Context, event model.WebhookEvent) error
	Close(ctx context.Context) error
}

// OutcomeRepo defines ingestion outcome and audit log storage operations.
// Both are best-effort writes.
type OutcomeRepo interface {
	SaveOutcome(ctx context.Context, outcome model.IngestionOutcome) error
	SaveAuditLog(ctx context.Context, entry model.AuditLog) error
	Close(ctx context.Context) error
}
