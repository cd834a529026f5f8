package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/qualify"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// QualifyLead rebuilds the lead's snapshot from current state, scores it
// under the organization's rules, and writes the result back. Reruns are safe
// and expected: every run recomputes from scratch, so a rerun after new
// answers can move the lead in either direction.
func (s *IntakeService) QualifyLead(ctx context.Context, leadID string) error {
	log := logger.FromContext(ctx).With(zap.String("lead_id", leadID))

	lead, err := s.leadRepo.FindByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load lead for qualification: %w", err)
	}

	org, err := s.orgRepo.FindByID(ctx, lead.OrgID)
	if err != nil {
		return fmt.Errorf("load organization rules: %w", err)
	}
	rules, err := qualify.DecodeRules(org.QualificationRules)
	if err != nil {
		// Broken rules fall back to defaults rather than blocking scoring.
		log.Warn("Invalid qualification rules, using defaults", zap.Error(err))
	}

	snapshot, err := s.buildSnapshot(ctx, lead)
	if err != nil {
		return fmt.Errorf("build qualification snapshot: %w", err)
	}

	result := qualify.Score(snapshot, rules)
	status := leadStatusFor(result.Disposition)

	if err := s.leadRepo.ApplyQualification(ctx, lead.ID, result.Score, result.Disposition, status, utils.Now()); err != nil {
		return fmt.Errorf("apply qualification: %w", err)
	}
	observer.IncLeadDisposition(result.Disposition, lead.OrgID)

	lead.Score = &result.Score
	lead.Disposition = result.Disposition
	lead.Status = status
	s.publisher.PublishLeadQualified(ctx, *lead)

	s.outcomeWorker.RecordAudit(ctx, model.AuditLog{
		OrgID:      lead.OrgID,
		Actor:      "qualification_engine",
		Action:     "lead.qualified",
		EntityType: "lead",
		EntityID:   lead.ID,
		Detail:     datatypes.JSON(utils.MustMarshalJSON(result)),
	})

	log.Info("Lead qualified",
		zap.Int("score", result.Score),
		zap.String("disposition", result.Disposition),
		zap.String("reasons", strings.Join(result.Reasons, "; ")))
	return nil
}

// buildSnapshot assembles the scorer's view of a lead from current state.
func (s *IntakeService) buildSnapshot(ctx context.Context, lead *model.Lead) (qualify.Snapshot, error) {
	snapshot := qualify.Snapshot{
		PracticeAreaMatch: lead.PracticeArea != "",
		Answers:           map[string]interface{}{},
	}

	contact, err := s.contactRepo.FindByID(ctx, lead.ContactID)
	if err != nil {
		return snapshot, fmt.Errorf("load contact: %w", err)
	}
	snapshot.HasPhone = contact.HasPhone()
	snapshot.HasEmail = contact.HasEmail()
	snapshot.HasName = contact.Name != ""

	intake, err := s.intakeRepo.FindByLeadID(ctx, lead.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return snapshot, fmt.Errorf("load intake: %w", err)
		}
	} else {
		snapshot.IntakeComplete = intake.IsComplete()
		answers, decodeErr := intake.AnswersMap()
		if decodeErr != nil {
			logger.FromContext(ctx).Warn("Undecodable intake answers, scoring without them",
				zap.String("lead_id", lead.ID),
				zap.Error(decodeErr))
		} else {
			snapshot.Answers = answers
		}
	}

	count, err := s.callRepo.CountByLead(ctx, lead.ID)
	if err != nil {
		return snapshot, fmt.Errorf("count calls: %w", err)
	}
	snapshot.CallCount = count

	return snapshot, nil
}

// leadStatusFor maps a disposition to the lead status it implies.
func leadStatusFor(disposition string) string {
	switch disposition {
	case qualify.DispositionAccept:
		return model.LeadStatusQualified
	case qualify.DispositionDecline:
		return model.LeadStatusDeclined
	default:
		return model.LeadStatusContacted
	}
}
