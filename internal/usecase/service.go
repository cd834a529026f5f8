package usecase

import (
	"gitlab.com/caselane/api/caselane-intake-processor/internal/events"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/storage"
)

// IntakeService implements webhook ingestion, tool-call execution, and lead
// qualification on top of the canonical data model.
type IntakeService struct {
	orgRepo          storage.OrgRepo
	contactRepo      storage.ContactRepo
	leadRepo         storage.LeadRepo
	intakeRepo       storage.IntakeRepo
	callRepo         storage.CallRepo
	webhookEventRepo storage.WebhookEventRepo
	publisher        events.Publisher
	outcomeWorker    IOutcomeWorker
}

// NewIntakeService creates a new intake service
func NewIntakeService(
	orgRepo storage.OrgRepo,
	contactRepo storage.ContactRepo,
	leadRepo storage.LeadRepo,
	intakeRepo storage.IntakeRepo,
	callRepo storage.CallRepo,
	webhookEventRepo storage.WebhookEventRepo,
	publisher events.Publisher,
	outcomeWorker IOutcomeWorker,
) *IntakeService {
	return &IntakeService{
		orgRepo:          orgRepo,
		contactRepo:      contactRepo,
		leadRepo:         leadRepo,
		intakeRepo:       intakeRepo,
		callRepo:         callRepo,
		webhookEventRepo: webhookEventRepo,
		publisher:        publisher,
		outcomeWorker:    outcomeWorker,
	}
}
