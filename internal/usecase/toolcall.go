package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/normalize"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// ToolSession carries call-scoped state across the tool calls of one webhook.
// LeadID sticks once resolved, so save_intake_answers right after create_lead
// works without a second lookup.
type ToolSession struct {
	OrgID       string
	Call        *model.Call
	CallerPhone string // normalized
	CallerName  string
	Channel     string
	LeadID      string
}

// ExecuteToolCalls runs each tool call of a webhook in order and returns one
// result per call. One failing call never aborts the batch; its error rides
// back in its own result and the remaining calls still run.
func (s *IntakeService) ExecuteToolCalls(ctx context.Context, session *ToolSession, toolCalls []model.VapiToolCall) []model.VapiToolCallResult {
	results := make([]model.VapiToolCallResult, 0, len(toolCalls))
	for _, tc := range toolCalls {
		result := s.ExecuteToolCall(ctx, session, tc)
		entry := model.VapiToolCallResult{ToolCallID: tc.ID}
		if result.Success {
			entry.Result = string(utils.MustMarshalJSON(result.Data))
			if entry.Result == "null" {
				entry.Result = `{"ok":true}`
			}
		} else {
			entry.Error = result.Error
		}
		results = append(results, entry)
	}
	return results
}

// ExecuteToolCall dispatches one tool call. It never returns a Go error and
// never panics outward; every failure path folds into the ToolResult so the
// assistant conversation can continue.
func (s *IntakeService) ExecuteToolCall(ctx context.Context, session *ToolSession, tc model.VapiToolCall) (result model.ToolResult) {
	log := logger.FromContext(ctx).With(
		zap.String("tool", tc.Function.Name),
		zap.String("tool_call_id", tc.ID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in tool call execution", zap.Any("panic", r), zap.Stack("stack"))
			result = model.ToolResult{Success: false, Error: "internal error"}
		}
		observer.IncToolCallExecuted(tc.Function.Name, session.OrgID, result.Success)
	}()

	args := rawArguments(tc.Function.Arguments)

	switch tc.Function.Name {
	case model.ToolCreateLead:
		result = s.execCreateLead(ctx, session, args)
	case model.ToolSaveIntakeAnswers:
		result = s.execSaveIntakeAnswers(ctx, session, args)
	case model.ToolUpdateLead:
		result = s.execUpdateLead(ctx, session, args)
	case model.ToolWarmTransfer:
		result = s.execWarmTransfer(ctx, session, args)
	case model.ToolEndCall:
		result = s.execEndCall(ctx, session, args)
	default:
		log.Warn("Unknown tool call")
		result = model.ToolResult{Success: false, Error: fmt.Sprintf("unknown tool %q", tc.Function.Name)}
	}

	if !result.Success {
		log.Warn("Tool call failed", zap.String("error", result.Error))
	}
	return result
}

func (s *IntakeService) execCreateLead(ctx context.Context, session *ToolSession, raw json.RawMessage) model.ToolResult {
	var args model.CreateLeadArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid create_lead arguments: %v", err)}
	}

	seed := leadSeed{
		Name:         strings.TrimSpace(args.Name),
		Phone:        normalize.Phone(args.Phone),
		Email:        strings.TrimSpace(args.Email),
		PracticeArea: strings.TrimSpace(args.PracticeArea),
		Summary:      strings.TrimSpace(args.Summary),
		Channel:      args.Channel,
	}
	// The assistant often omits identity it already has from telephony.
	if seed.Phone == "" {
		seed.Phone = session.CallerPhone
	}
	if seed.Name == "" {
		seed.Name = session.CallerName
	}
	if seed.Channel == "" {
		seed.Channel = session.Channel
	}

	lead, err := s.ensureContactAndLead(ctx, session.OrgID, seed, session.Call)
	if err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}
	session.LeadID = lead.ID

	if seed.PracticeArea != "" && lead.PracticeArea == "" {
		fields := map[string]interface{}{"practice_area": seed.PracticeArea}
		// Never blank a summary already stored on the lead.
		if seed.Summary != "" {
			fields["summary"] = seed.Summary
		}
		if updErr := s.leadRepo.Update(ctx, lead.ID, fields); updErr != nil {
			logger.FromContext(ctx).Warn("Failed to set practice area on existing lead", zap.Error(updErr))
		}
	}

	return model.ToolResult{Success: true, Data: map[string]interface{}{
		"lead_id":    lead.ID,
		"contact_id": lead.ContactID,
		"status":     lead.Status,
	}}
}

func (s *IntakeService) execSaveIntakeAnswers(ctx context.Context, session *ToolSession, raw json.RawMessage) model.ToolResult {
	var args model.SaveIntakeAnswersArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid save_intake_answers arguments: %v", err)}
	}

	leadID, err := s.resolveLead(ctx, session)
	if err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	answers := decodeAnswers(args.Answers)
	if len(answers) == 0 {
		return model.ToolResult{Success: true, Data: map[string]interface{}{"saved": 0}}
	}

	intake, err := s.intakeRepo.UpsertAnswers(ctx, leadID, answers)
	if err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	s.outcomeWorker.RecordAudit(ctx, model.AuditLog{
		OrgID:      session.OrgID,
		Actor:      "voice_agent",
		Action:     "intake.answers_saved",
		EntityType: "intake",
		EntityID:   intake.ID,
		Detail:     datatypes.JSON(utils.MustMarshalJSON(map[string]interface{}{"keys": answerKeys(answers)})),
	})

	return model.ToolResult{Success: true, Data: map[string]interface{}{
		"saved":     len(answers),
		"intake_id": intake.ID,
	}}
}

func (s *IntakeService) execUpdateLead(ctx context.Context, session *ToolSession, raw json.RawMessage) model.ToolResult {
	var args model.UpdateLeadArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid update_lead arguments: %v", err)}
	}

	leadID, err := s.resolveLead(ctx, session)
	if err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	fields := map[string]interface{}{}
	if args.Status != "" {
		if !model.ValidLeadStatus(args.Status) {
			return model.ToolResult{Success: false, Error: fmt.Sprintf("unknown lead status %q", args.Status)}
		}
		fields["status"] = args.Status
	}
	if args.Priority != "" {
		if !model.ValidLeadPriority(args.Priority) {
			return model.ToolResult{Success: false, Error: fmt.Sprintf("unknown lead priority %q", args.Priority)}
		}
		fields["priority"] = args.Priority
	}
	if args.Summary != "" {
		fields["summary"] = args.Summary
	}
	if len(fields) == 0 {
		// An empty update succeeds as a no-op.
		return model.ToolResult{Success: true, Data: map[string]interface{}{"updated": false}}
	}

	if err := s.leadRepo.Update(ctx, leadID, fields); err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	s.outcomeWorker.RecordAudit(ctx, model.AuditLog{
		OrgID:      session.OrgID,
		Actor:      "voice_agent",
		Action:     "lead.updated",
		EntityType: "lead",
		EntityID:   leadID,
		Detail:     datatypes.JSON(utils.MustMarshalJSON(args)),
	})

	return model.ToolResult{Success: true, Data: map[string]interface{}{"updated": true}}
}

func (s *IntakeService) execWarmTransfer(ctx context.Context, session *ToolSession, raw json.RawMessage) model.ToolResult {
	var args model.WarmTransferArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid warm_transfer arguments: %v", err)}
	}

	leadID, err := s.resolveLead(ctx, session)
	if err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	callID := ""
	if session.Call != nil {
		callID = session.Call.ID
	}
	interaction := model.Interaction{
		OrgID:   session.OrgID,
		LeadID:  leadID,
		CallID:  callID,
		Channel: session.Channel,
		Kind:    model.InteractionKindWarmTransfer,
		Status:  model.InteractionStatusPending,
		Notes:   args.Reason,
		Metadata: datatypes.JSON(utils.MustMarshalJSON(map[string]string{
			"reason":  args.Reason,
			"urgency": args.Urgency,
		})),
	}
	if err := s.callRepo.SaveInteraction(ctx, interaction); err != nil {
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	// An urgent transfer escalates the lead immediately; qualification may
	// still adjust it later.
	if priority := transferPriority(args.Urgency); priority != "" {
		if updErr := s.leadRepo.Update(ctx, leadID, map[string]interface{}{"priority": priority}); updErr != nil {
			logger.FromContext(ctx).Warn("Failed to escalate lead priority after transfer", zap.Error(updErr))
		}
	}

	s.outcomeWorker.RecordAudit(ctx, model.AuditLog{
		OrgID:      session.OrgID,
		Actor:      "voice_agent",
		Action:     "lead.warm_transfer_requested",
		EntityType: "lead",
		EntityID:   leadID,
		Detail:     datatypes.JSON(utils.MustMarshalJSON(args)),
	})

	return model.ToolResult{Success: true, Data: map[string]interface{}{"transfer": "pending"}}
}

func (s *IntakeService) execEndCall(ctx context.Context, session *ToolSession, raw json.RawMessage) model.ToolResult {
	var args model.EndCallArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.ToolResult{Success: false, Error: fmt.Sprintf("invalid end_call arguments: %v", err)}
	}

	if session.Call != nil {
		now := utils.Now()
		updated, err := s.callRepo.Upsert(ctx, model.Call{
			OrgID:          session.OrgID,
			Provider:       session.Call.Provider,
			ProviderCallID: session.Call.ProviderCallID,
			Status:         model.CallStatusCompleted,
			Summary:        args.Summary,
			EndedAt:        &now,
		})
		if err != nil {
			return model.ToolResult{Success: false, Error: err.Error()}
		}
		session.Call = updated
	}

	leadID, err := s.resolveLead(ctx, session)
	if err != nil {
		// A call can legitimately end before any lead was created; there is
		// nothing to complete or qualify.
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrValidation) {
			return model.ToolResult{Success: true, Data: map[string]interface{}{"ended": true}}
		}
		return model.ToolResult{Success: false, Error: err.Error()}
	}

	if args.OutcomeCompletesIntake() {
		if err := s.intakeRepo.MarkComplete(ctx, leadID); err != nil {
			return model.ToolResult{Success: false, Error: err.Error()}
		}
	}

	if session.Call != nil {
		s.publisher.PublishCallCompleted(ctx, *session.Call)
	}

	if err := s.QualifyLead(ctx, leadID); err != nil {
		logger.FromContext(ctx).Error("Qualification run failed at end of call",
			zap.String("lead_id", leadID),
			zap.Error(err))
	}

	return model.ToolResult{Success: true, Data: map[string]interface{}{"ended": true}}
}

// resolveLead finds the lead the session is about: the one already resolved,
// the one attached to the call, or the caller's open lead.
func (s *IntakeService) resolveLead(ctx context.Context, session *ToolSession) (string, error) {
	if session.LeadID != "" {
		return session.LeadID, nil
	}
	if session.Call != nil && session.Call.LeadID != "" {
		session.LeadID = session.Call.LeadID
		return session.LeadID, nil
	}
	if session.CallerPhone != "" {
		contact, err := s.contactRepo.FindByPhone(ctx, session.CallerPhone)
		if err == nil {
			lead, leadErr := s.leadRepo.FindOpenByContact(ctx, contact.ID)
			if leadErr == nil {
				session.LeadID = lead.ID
				if session.Call != nil && session.Call.LeadID == "" {
					if attachErr := s.callRepo.AttachLead(ctx, session.Call.ID, lead.ID); attachErr == nil {
						session.Call.LeadID = lead.ID
					}
				}
				return lead.ID, nil
			}
			if !errors.Is(leadErr, apperrors.ErrNotFound) {
				return "", leadErr
			}
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: no lead exists for this call; create_lead must run first", apperrors.ErrNotFound)
}

// rawArguments unwraps tool arguments that arrive as a JSON-encoded string
// instead of an object.
func rawArguments(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.RawMessage(s)
	}
	return raw
}

// decodeAnswers decodes an answer bag, tolerating malformed input by wrapping
// it as raw text rather than rejecting the tool call.
func decodeAnswers(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return map[string]interface{}{"raw_text": s}
	}
	return map[string]interface{}{"raw_text": string(raw)}
}

// transferPriority maps a transfer urgency to a lead priority escalation.
func transferPriority(urgency string) string {
	switch strings.ToLower(strings.TrimSpace(urgency)) {
	case "urgent", "emergency", "immediate":
		return model.LeadPriorityUrgent
	case "high":
		return model.LeadPriorityHigh
	}
	return ""
}

// answerKeys lists the keys of an answer bag for audit detail.
func answerKeys(answers map[string]interface{}) []string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	return keys
}
