package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// IngestResult describes how a webhook delivery was handled.
type IngestResult struct {
	Duplicate bool
	OrgID     string
	Call      *model.Call
	Lead      *model.Lead
}

// Ingest runs the canonical webhook pipeline: idempotency gate, tenant
// routing, call persistence, qualification, outcome recording.
//
// The gate comes first so a duplicate delivery does no work at all. Routing
// failures and persistence failures both leave an outcome record; only the
// latter is an error to the caller.
func (s *IntakeService) Ingest(ctx context.Context, nc model.NormalizedCall, rawPayload []byte) (*IngestResult, error) {
	log := logger.FromContext(ctx).With(
		zap.String("provider", nc.Provider),
		zap.String("external_id", nc.ExternalID),
	)

	event := model.WebhookEvent{
		Provider:   nc.Provider,
		ExternalID: nc.ExternalID,
		EventType:  nc.Status,
		Payload:    datatypes.JSON(rawPayload),
	}
	if err := s.webhookEventRepo.InsertOnce(ctx, event); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			log.Info("Duplicate webhook delivery suppressed")
			observer.IncWebhooksDuplicate(nc.Provider, "")
			return &IngestResult{Duplicate: true}, nil
		}
		s.outcomeWorker.RecordOutcome(ctx, model.IngestionOutcome{
			Provider:   nc.Provider,
			ExternalID: nc.ExternalID,
			Status:     model.OutcomeFailed,
			Error:      err.Error(),
			Payload:    datatypes.JSON(rawPayload),
		})
		return nil, fmt.Errorf("idempotency gate failed: %w", err)
	}

	org, err := s.orgRepo.FindByInboundNumber(ctx, nc.ToE164)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnrouted) {
			log.Warn("No organization owns the called number, skipping",
				zap.String("to_number", nc.ToE164))
			s.outcomeWorker.RecordOutcome(ctx, model.IngestionOutcome{
				Provider:   nc.Provider,
				ExternalID: nc.ExternalID,
				Status:     model.OutcomeSkipped,
				Error:      fmt.Sprintf("unrouted number %s", nc.ToE164),
				Payload:    datatypes.JSON(rawPayload),
			})
			return nil, err
		}
		s.outcomeWorker.RecordOutcome(ctx, FallbackOutcome(nc.Provider, nc.ExternalID, "", rawPayload, err))
		return nil, fmt.Errorf("tenant routing failed: %w", err)
	}

	ctx = tenant.WithOrgID(ctx, org.ID)
	log = log.With(zap.String("org_id", org.ID))

	call, err := s.callRepo.Upsert(ctx, model.Call{
		OrgID:           org.ID,
		Provider:        nc.Provider,
		ProviderCallID:  nc.CallID,
		FromE164:        nc.FromE164,
		ToE164:          nc.ToE164,
		Status:          callStatusFrom(nc),
		Summary:         nc.Summary,
		DurationSeconds: nc.DurationSec,
		EndedAt:         endedAtFrom(nc),
	})
	if err != nil {
		s.outcomeWorker.RecordOutcome(ctx, FallbackOutcome(nc.Provider, nc.ExternalID, org.ID, rawPayload, err))
		return nil, fmt.Errorf("persist call: %w", err)
	}

	result := &IngestResult{OrgID: org.ID, Call: call}

	// SMS inquiries carry no tool calls, so the contact and lead are created
	// directly from the message itself.
	if nc.Channel == model.SourceChannelSMS {
		lead, leadErr := s.ensureContactAndLead(ctx, org.ID, leadSeed{
			Name:    nc.DisplayName,
			Phone:   nc.FromE164,
			Channel: model.SourceChannelSMS,
		}, call)
		if leadErr != nil {
			log.Error("Failed to ensure lead for SMS inquiry", zap.Error(leadErr))
		} else {
			result.Lead = lead
		}
	}

	if isTerminalStatus(nc) {
		if call.LeadID != "" {
			s.publisher.PublishCallCompleted(ctx, *call)
			if qualifyErr := s.QualifyLead(ctx, call.LeadID); qualifyErr != nil {
				log.Error("Qualification run failed after call end", zap.Error(qualifyErr))
			}
		} else {
			log.Debug("Call ended with no lead attached, nothing to qualify")
		}
	}

	s.outcomeWorker.RecordOutcome(ctx, model.IngestionOutcome{
		Provider:   nc.Provider,
		ExternalID: nc.ExternalID,
		OrgID:      org.ID,
		Status:     model.OutcomePersisted,
	})

	return result, nil
}

// RouteOrg resolves the organization for a called number without persisting
// anything, used by handlers that must verify tenant routing before
// answering a provider (e.g. accepting a SIP call).
func (s *IntakeService) RouteOrg(ctx context.Context, toE164 string) (*model.Organization, error) {
	return s.orgRepo.FindByInboundNumber(ctx, toE164)
}

// leadSeed carries caller identity into contact/lead creation.
type leadSeed struct {
	Name         string
	Phone        string
	Email        string
	PracticeArea string
	Summary      string
	Channel      string
}

// ensureContactAndLead finds or creates the contact for a caller, then finds
// the contact's open lead or creates a fresh one, attaching the current call.
// Contact dedup is by phone first, email second. Two concurrent creators can
// race; the loser's duplicate error resolves by re-reading.
func (s *IntakeService) ensureContactAndLead(ctx context.Context, orgID string, seed leadSeed, call *model.Call) (*model.Lead, error) {
	log := logger.FromContext(ctx)

	contact, err := s.findOrCreateContact(ctx, orgID, seed)
	if err != nil {
		return nil, fmt.Errorf("ensure contact: %w", err)
	}

	lead, err := s.leadRepo.FindOpenByContact(ctx, contact.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("find open lead: %w", err)
		}
		newLead := model.Lead{
			ID:            uuid.New().String(),
			OrgID:         orgID,
			ContactID:     contact.ID,
			Status:        model.LeadStatusNew,
			Priority:      model.LeadPriorityMedium,
			SourceChannel: seed.Channel,
			PracticeArea:  seed.PracticeArea,
			Summary:       seed.Summary,
		}
		if saveErr := s.leadRepo.Save(ctx, newLead); saveErr != nil {
			return nil, fmt.Errorf("create lead: %w", saveErr)
		}
		lead = &newLead
		s.publisher.PublishLeadCreated(ctx, newLead)
		s.outcomeWorker.RecordAudit(ctx, model.AuditLog{
			OrgID:      orgID,
			Actor:      "voice_agent",
			Action:     "lead.created",
			EntityType: "lead",
			EntityID:   newLead.ID,
			Detail:     datatypes.JSON(utils.MustMarshalJSON(map[string]string{"contact_id": contact.ID, "channel": seed.Channel})),
		})
		log.Info("Created lead",
			zap.String("lead_id", newLead.ID),
			zap.String("contact_id", contact.ID))
	}

	if call != nil && call.LeadID == "" {
		if attachErr := s.callRepo.AttachLead(ctx, call.ID, lead.ID); attachErr != nil {
			log.Warn("Failed to attach call to lead",
				zap.String("call_id", call.ID),
				zap.String("lead_id", lead.ID),
				zap.Error(attachErr))
		} else {
			call.LeadID = lead.ID
		}
	}

	return lead, nil
}

// findOrCreateContact resolves the caller to a contact row, creating one if
// neither phone nor email matches. Known contacts are enriched with any newly
// learned name or email; the canonical phone is never weakened.
func (s *IntakeService) findOrCreateContact(ctx context.Context, orgID string, seed leadSeed) (*model.Contact, error) {
	if seed.Phone != "" {
		contact, err := s.contactRepo.FindByPhone(ctx, seed.Phone)
		if err == nil {
			return s.enrichContact(ctx, contact, seed)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	if seed.Email != "" {
		contact, err := s.contactRepo.FindByEmail(ctx, seed.Email)
		if err == nil {
			return s.enrichContact(ctx, contact, seed)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	if seed.Phone == "" && seed.Email == "" {
		return nil, fmt.Errorf("%w: caller has neither phone nor email", apperrors.ErrValidation)
	}

	contact := model.Contact{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Name:      seed.Name,
		PhoneE164: seed.Phone,
		Email:     seed.Email,
	}
	if err := s.contactRepo.Save(ctx, contact); err != nil {
		// Lost a creation race: someone else inserted the same identity.
		if errors.Is(err, apperrors.ErrDuplicate) && seed.Phone != "" {
			return s.contactRepo.FindByPhone(ctx, seed.Phone)
		}
		return nil, err
	}
	return &contact, nil
}

// enrichContact fills in newly learned identity fields on an existing contact.
func (s *IntakeService) enrichContact(ctx context.Context, contact *model.Contact, seed leadSeed) (*model.Contact, error) {
	changed := false
	if contact.Name == "" && seed.Name != "" {
		contact.Name = seed.Name
		changed = true
	}
	if contact.Email == "" && seed.Email != "" {
		contact.Email = seed.Email
		changed = true
	}
	if contact.PhoneE164 == "" && seed.Phone != "" {
		contact.PhoneE164 = seed.Phone
		changed = true
	}
	if !changed {
		return contact, nil
	}
	if err := s.contactRepo.Update(ctx, *contact); err != nil {
		logger.FromContext(ctx).Warn("Failed to enrich contact",
			zap.String("contact_id", contact.ID),
			zap.Error(err))
	}
	return contact, nil
}

// callStatusFrom maps a provider status onto the canonical call status.
func callStatusFrom(nc model.NormalizedCall) string {
	if isTerminalStatus(nc) {
		return model.CallStatusCompleted
	}
	switch nc.Status {
	case "failed", "busy", "no-answer", "canceled":
		return model.CallStatusFailed
	}
	return model.CallStatusInProgress
}

// isTerminalStatus reports whether the event marks the end of a call.
func isTerminalStatus(nc model.NormalizedCall) bool {
	switch nc.Status {
	case "completed", "ended":
		return true
	}
	return nc.Provider == model.ProviderVapi && nc.Metadata != nil && nc.Metadata["message_type"] == model.VapiMessageEndOfCallReport
}

// endedAtFrom returns the call end timestamp for terminal events.
func endedAtFrom(nc model.NormalizedCall) *time.Time {
	if !isTerminalStatus(nc) {
		return nil
	}
	now := utils.Now()
	return &now
}
