package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	storagemock "gitlab.com/caselane/api/caselane-intake-processor/internal/storage/mock"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zaptest.NewLogger(nil).Named("test")
}

const testOrgID = "org-test-1"

// recorderPublisher captures published lifecycle events.
type recorderPublisher struct {
	created   []model.Lead
	qualified []model.Lead
	completed []model.Call
}

func (p *recorderPublisher) PublishLeadCreated(_ context.Context, lead model.Lead) {
	p.created = append(p.created, lead)
}

func (p *recorderPublisher) PublishLeadQualified(_ context.Context, lead model.Lead) {
	p.qualified = append(p.qualified, lead)
}

func (p *recorderPublisher) PublishCallCompleted(_ context.Context, call model.Call) {
	p.completed = append(p.completed, call)
}

func (p *recorderPublisher) Close() {}

// recorderWorker captures outcome and audit submissions synchronously so tests
// can assert on them without a real pool.
type recorderWorker struct {
	outcomes []model.IngestionOutcome
	audits   []model.AuditLog
}

func (w *recorderWorker) RecordOutcome(_ context.Context, outcome model.IngestionOutcome) {
	w.outcomes = append(w.outcomes, outcome)
}

func (w *recorderWorker) RecordAudit(_ context.Context, entry model.AuditLog) {
	w.audits = append(w.audits, entry)
}

func (w *recorderWorker) Stop() {}

// testDeps bundles the service with its mocked collaborators.
type testDeps struct {
	orgRepo          *storagemock.OrgRepoMock
	contactRepo      *storagemock.ContactRepoMock
	leadRepo         *storagemock.LeadRepoMock
	intakeRepo       *storagemock.IntakeRepoMock
	callRepo         *storagemock.CallRepoMock
	webhookEventRepo *storagemock.WebhookEventRepoMock
	publisher        *recorderPublisher
	worker           *recorderWorker
	service          *IntakeService
}

func newTestService(t *testing.T) *testDeps {
	logger.Log = zaptest.NewLogger(t).Named("test")

	deps := &testDeps{
		orgRepo:          new(storagemock.OrgRepoMock),
		contactRepo:      new(storagemock.ContactRepoMock),
		leadRepo:         new(storagemock.LeadRepoMock),
		intakeRepo:       new(storagemock.IntakeRepoMock),
		callRepo:         new(storagemock.CallRepoMock),
		webhookEventRepo: new(storagemock.WebhookEventRepoMock),
		publisher:        &recorderPublisher{},
		worker:           &recorderWorker{},
	}
	deps.service = NewIntakeService(
		deps.orgRepo,
		deps.contactRepo,
		deps.leadRepo,
		deps.intakeRepo,
		deps.callRepo,
		deps.webhookEventRepo,
		deps.publisher,
		deps.worker,
	)
	return deps
}

func testTenantContext() context.Context {
	return tenant.WithOrgID(context.Background(), testOrgID)
}
