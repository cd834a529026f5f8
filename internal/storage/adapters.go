package storage

import (
	"context"
	"time"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

// OrgRepoAdapter adapts the PostgresRepo to the OrgRepo interface
type OrgRepoAdapter struct {
	postgres *PostgresRepo
}

// NewOrgRepoAdapter creates a new organization repository adapter
func NewOrgRepoAdapter(postgres *PostgresRepo) OrgRepo {
	return &OrgRepoAdapter{postgres: postgres}
}

// FindByID finds an organization by ID
func (a *OrgRepoAdapter) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	return a.postgres.FindOrgByID(ctx, id)
}

// FindByInboundNumber routes a called number to its organization
func (a *OrgRepoAdapter) FindByInboundNumber(ctx context.Context, phoneE164 string) (*model.Organization, error) {
	return a.postgres.FindOrgByInboundNumber(ctx, phoneE164)
}

func (a *OrgRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

// Save saves a contact
func (a *ContactRepoAdapter) Save(ctx context.Context, contact model.Contact) error {
	return a.postgres.SaveContact(ctx, contact)
}

// Update updates a contact
func (a *ContactRepoAdapter) Update(ctx context.Context, contact model.Contact) error {
	return a.postgres.UpdateContact(ctx, contact)
}

// FindByID finds a contact by ID
func (a *ContactRepoAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.postgres.FindContactByID(ctx, id)
}

// FindByPhone finds a contact by normalized phone number
func (a *ContactRepoAdapter) FindByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error) {
	return a.postgres.FindContactByPhone(ctx, phoneE164)
}

// FindByEmail finds a contact by email
func (a *ContactRepoAdapter) FindByEmail(ctx context.Context, email string) (*model.Contact, error) {
	return a.postgres.FindContactByEmail(ctx, email)
}

func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// LeadRepoAdapter adapts the PostgresRepo to the LeadRepo interface
type LeadRepoAdapter struct {
	postgres *PostgresRepo
}

// NewLeadRepoAdapter creates a new lead repository adapter
func NewLeadRepoAdapter(postgres *PostgresRepo) LeadRepo {
	return &LeadRepoAdapter{postgres: postgres}
}

// Save saves a lead
func (a *LeadRepoAdapter) Save(ctx context.Context, lead model.Lead) error {
	return a.postgres.SaveLead(ctx, lead)
}

// Update applies a partial field update to a lead
func (a *LeadRepoAdapter) Update(ctx context.Context, leadID string, fields map[string]interface{}) error {
	return a.postgres.UpdateLead(ctx, leadID, fields)
}

// FindByID finds a lead by ID
func (a *LeadRepoAdapter) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	return a.postgres.FindLeadByID(ctx, id)
}

// FindOpenByContact finds the contact's most recent open lead
func (a *LeadRepoAdapter) FindOpenByContact(ctx context.Context, contactID string) (*model.Lead, error) {
	return a.postgres.FindOpenLeadByContact(ctx, contactID)
}

// ApplyQualification writes a scoring result onto a lead
func (a *LeadRepoAdapter) ApplyQualification(ctx context.Context, leadID string, score int, disposition string, status string, qualifiedAt time.Time) error {
	return a.postgres.ApplyQualification(ctx, leadID, score, disposition, status, qualifiedAt)
}

func (a *LeadRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// IntakeRepoAdapter adapts the PostgresRepo to the IntakeRepo interface
type IntakeRepoAdapter struct {
	postgres *PostgresRepo
}

// NewIntakeRepoAdapter creates a new intake repository adapter
func NewIntakeRepoAdapter(postgres *PostgresRepo) IntakeRepo {
	return &IntakeRepoAdapter{postgres: postgres}
}

// UpsertAnswers merges new answers into the lead's intake record
func (a *IntakeRepoAdapter) UpsertAnswers(ctx context.Context, leadID string, answers map[string]interface{}) (*model.Intake, error) {
	return a.postgres.UpsertIntakeAnswers(ctx, leadID, answers)
}

// MarkComplete flips the lead's intake to complete
func (a *IntakeRepoAdapter) MarkComplete(ctx context.Context, leadID string) error {
	return a.postgres.MarkIntakeComplete(ctx, leadID)
}

// FindByLeadID finds the intake record for a lead
func (a *IntakeRepoAdapter) FindByLeadID(ctx context.Context, leadID string) (*model.Intake, error) {
	return a.postgres.FindIntakeByLeadID(ctx, leadID)
}

func (a *IntakeRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CallRepoAdapter adapts the PostgresRepo to the CallRepo interface
type CallRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCallRepoAdapter creates a new call repository adapter
func NewCallRepoAdapter(postgres *PostgresRepo) CallRepo {
	return &CallRepoAdapter{postgres: postgres}
}

// Upsert saves a call keyed by (provider, provider_call_id)
func (a *CallRepoAdapter) Upsert(ctx context.Context, call model.Call) (*model.Call, error) {
	return a.postgres.UpsertCall(ctx, call)
}

// FindByProviderCallID finds a call by its provider dedup key
func (a *CallRepoAdapter) FindByProviderCallID(ctx context.Context, provider, providerCallID string) (*model.Call, error) {
	return a.postgres.FindCallByProviderCallID(ctx, provider, providerCallID)
}

// CountByLead counts the calls attached to a lead
func (a *CallRepoAdapter) CountByLead(ctx context.Context, leadID string) (int, error) {
	return a.postgres.CountCallsByLead(ctx, leadID)
}

// AttachLead links a call to a lead
func (a *CallRepoAdapter) AttachLead(ctx context.Context, callID, leadID string) error {
	return a.postgres.AttachCallToLead(ctx, callID, leadID)
}

// SaveInteraction records a touchpoint on a lead
func (a *CallRepoAdapter) SaveInteraction(ctx context.Context, interaction model.Interaction) error {
	return a.postgres.SaveInteraction(ctx, interaction)
}

func (a *CallRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// WebhookEventRepoAdapter adapts the PostgresRepo to the WebhookEventRepo interface
type WebhookEventRepoAdapter struct {
	postgres *PostgresRepo
}

// NewWebhookEventRepoAdapter creates a new webhook event repository adapter
func NewWebhookEventRepoAdapter(postgres *PostgresRepo) WebhookEventRepo {
	return &WebhookEventRepoAdapter{postgres: postgres}
}

// InsertOnce records a webhook delivery exactly once
func (a *WebhookEventRepoAdapter) InsertOnce(ctx context.Context, event model.WebhookEvent) error {
	return a.postgres.InsertWebhookEventOnce(ctx, event)
}

func (a *WebhookEventRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// OutcomeRepoAdapter adapts the PostgresRepo to the OutcomeRepo interface
type OutcomeRepoAdapter struct {
	postgres *PostgresRepo
}

// NewOutcomeRepoAdapter creates a new outcome repository adapter
func NewOutcomeRepoAdapter(postgres *PostgresRepo) OutcomeRepo {
	return &OutcomeRepoAdapter{postgres: postgres}
}

// SaveOutcome records one webhook processing outcome
func (a *OutcomeRepoAdapter) SaveOutcome(ctx context.Context, outcome model.IngestionOutcome) error {
	return a.postgres.SaveIngestionOutcome(ctx, outcome)
}

// SaveAuditLog records one audit entry
func (a *OutcomeRepoAdapter) SaveAuditLog(ctx context.Context, entry model.AuditLog) error {
	return a.postgres.SaveAuditLog(ctx, entry)
}

func (a *OutcomeRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Ensure adapters implement the interfaces
var _ OrgRepo = (*OrgRepoAdapter)(nil)
var _ ContactRepo = (*ContactRepoAdapter)(nil)
var _ LeadRepo = (*LeadRepoAdapter)(nil)
var _ IntakeRepo = (*IntakeRepoAdapter)(nil)
var _ CallRepo = (*CallRepoAdapter)(nil)
var _ WebhookEventRepo = (*WebhookEventRepoAdapter)(nil)
var _ OutcomeRepo = (*OutcomeRepoAdapter)(nil)
