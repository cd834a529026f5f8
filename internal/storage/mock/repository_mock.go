package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

// --- OrgRepo Mock ---

// OrgRepoMock mocks the OrgRepo interface
type OrgRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *OrgRepoMock) FindByID(ctx context.Context, id string) (*model.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

// FindByInboundNumber mocks the FindByInboundNumber method
func (m *OrgRepoMock) FindByInboundNumber(ctx context.Context, phoneE164 string) (*model.Organization, error) {
	args := m.Called(ctx, phoneE164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Organization), args.Error(1)
}

// Close mocks the Close method
func (m *OrgRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ContactRepoMock) Save(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// Update mocks the Update method
func (m *ContactRepoMock) Update(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *ContactRepoMock) FindByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error) {
	args := m.Called(ctx, phoneE164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByEmail mocks the FindByEmail method
func (m *ContactRepoMock) FindByEmail(ctx context.Context, email string) (*model.Contact, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- LeadRepo Mock ---

// LeadRepoMock mocks the LeadRepo interface
type LeadRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *LeadRepoMock) Save(ctx context.Context, lead model.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// Update mocks the Update method
func (m *LeadRepoMock) Update(ctx context.Context, leadID string, fields map[string]interface{}) error {
	args := m.Called(ctx, leadID, fields)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *LeadRepoMock) FindByID(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// FindOpenByContact mocks the FindOpenByContact method
func (m *LeadRepoMock) FindOpenByContact(ctx context.Context, contactID string) (*model.Lead, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

// ApplyQualification mocks the ApplyQualification method
func (m *LeadRepoMock) ApplyQualification(ctx context.Context, leadID string, score int, disposition string, status string, qualifiedAt time.Time) error {
	args := m.Called(ctx, leadID, score, disposition, status, qualifiedAt)
	return args.Error(0)
}

// Close mocks the Close method
func (m *LeadRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- IntakeRepo Mock ---

// IntakeRepoMock mocks the IntakeRepo interface
type IntakeRepoMock struct {
	mock.Mock
}

// UpsertAnswers mocks the UpsertAnswers method
func (m *IntakeRepoMock) UpsertAnswers(ctx context.Context, leadID string, answers map[string]interface{}) (*model.Intake, error) {
	args := m.Called(ctx, leadID, answers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Intake), args.Error(1)
}

// MarkComplete mocks the MarkComplete method
func (m *IntakeRepoMock) MarkComplete(ctx context.Context, leadID string) error {
	args := m.Called(ctx, leadID)
	return args.Error(0)
}

// FindByLeadID mocks the FindByLeadID method
func (m *IntakeRepoMock) FindByLeadID(ctx context.Context, leadID string) (*model.Intake, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Intake), args.Error(1)
}

// Close mocks the Close method
func (m *IntakeRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CallRepo Mock ---

// CallRepoMock mocks the CallRepo interface
type CallRepoMock struct {
	mock.Mock
}

// Upsert mocks the Upsert method
func (m *CallRepoMock) Upsert(ctx context.Context, call model.Call) (*model.Call, error) {
	args := m.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

// FindByProviderCallID mocks the FindByProviderCallID method
func (m *CallRepoMock) FindByProviderCallID(ctx context.Context, provider, providerCallID string) (*model.Call, error) {
	args := m.Called(ctx, provider, providerCallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

// CountByLead mocks the CountByLead method
func (m *CallRepoMock) CountByLead(ctx context.Context, leadID string) (int, error) {
	args := m.Called(ctx, leadID)
	return args.Int(0), args.Error(1)
}

// AttachLead mocks the AttachLead method
func (m *CallRepoMock) AttachLead(ctx context.Context, callID, leadID string) error {
	args := m.Called(ctx, callID, leadID)
	return args.Error(0)
}

// SaveInteraction mocks the SaveInteraction method
func (m *CallRepoMock) SaveInteraction(ctx context.Context, interaction model.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

// Close mocks the Close method
func (m *CallRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- WebhookEventRepo Mock ---

// WebhookEventRepoMock mocks the WebhookEventRepo interface
type WebhookEventRepoMock struct {
	mock.Mock
}

// InsertOnce mocks the InsertOnce method
func (m *WebhookEventRepoMock) InsertOnce(ctx context.Context, event model.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close mocks the Close method
func (m *WebhookEventRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- OutcomeRepo Mock ---

// OutcomeRepoMock mocks the OutcomeRepo interface
type OutcomeRepoMock struct {
	mock.Mock
}

// SaveOutcome mocks the SaveOutcome method
func (m *OutcomeRepoMock) SaveOutcome(ctx context.Context, outcome model.IngestionOutcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

// SaveAuditLog mocks the SaveAuditLog method
func (m *OutcomeRepoMock) SaveAuditLog(ctx context.Context, entry model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// Close mocks the Close method
func (m *OutcomeRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
