package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/normalize"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/usecase"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/validator"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// vapiToolCallResponse is the body Vapi expects back for tool-calls messages.
type vapiToolCallResponse struct {
	Results []model.VapiToolCallResult `json:"results"`
}

// handleVapi terminates Vapi server webhooks: tool-calls during live
// conversations, status updates, and end-of-call reports.
func (s *Server) handleVapi(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	if !verifyVapiSecret(r, s.cfg.VapiSecret) {
		log.Warn("Rejected Vapi webhook with bad secret")
		observer.IncWebhooksRejected(model.ProviderVapi)
		utils.WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	var envelope model.VapiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Warn("Unparseable Vapi webhook body", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "unparseable body"})
		return
	}
	message := envelope.Message
	if err := validator.Validate(message); err != nil {
		log.Warn("Invalid Vapi webhook message", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if message.Call.ID == "" {
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "missing call id"})
		return
	}

	nc := normalize.Vapi(message)
	observer.IncWebhooksReceived(model.ProviderVapi, "")

	result, err := s.service.Ingest(ctx, nc, body)
	if err != nil {
		observer.ObserveWebhookProcessingDuration(model.ProviderVapi, orgLabel(result), time.Since(start))
		if errors.Is(err, apperrors.ErrUnrouted) {
			utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		log.Error("Vapi webhook processing failed", zap.Error(err))
		observer.IncWebhooksFailed(model.ProviderVapi, orgLabel(result))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	// Duplicate tool-calls deliveries still need a well-formed results body,
	// but re-executing the tools is exactly what the gate exists to prevent.
	if result.Duplicate {
		utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if message.Type == model.VapiMessageToolCalls && len(message.ToolCallList) > 0 {
		ctx = tenant.WithOrgID(ctx, result.OrgID)
		session := &usecase.ToolSession{
			OrgID:       result.OrgID,
			Call:        result.Call,
			CallerPhone: nc.FromE164,
			CallerName:  nc.DisplayName,
			Channel:     model.SourceChannelVoice,
		}
		results := s.service.ExecuteToolCalls(ctx, session, message.ToolCallList)
		observer.ObserveWebhookProcessingDuration(model.ProviderVapi, result.OrgID, time.Since(start))
		utils.WriteJSONResponse(w, http.StatusOK, vapiToolCallResponse{Results: results})
		return
	}

	observer.ObserveWebhookProcessingDuration(model.ProviderVapi, result.OrgID, time.Since(start))
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
