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
	"gitlab.com/caselane/api/caselane-intake-processor/internal/validator"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// realtimeResponse tells OpenAI whether to accept the inbound SIP call.
type realtimeResponse struct {
	Action string `json:"action"` // accepted or rejected
}

// handleRealtime terminates OpenAI Realtime SIP events, signed per the
// Standard Webhooks spec. For an incoming call the response decides call
// handling: accepted when the called number routes to a tenant, rejected
// otherwise.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !verifyStandardWebhook(r, body, s.cfg.OpenAISigningKey, s.cfg.SignatureSkew) {
		log.Warn("Rejected realtime webhook with bad signature")
		observer.IncWebhooksRejected(model.ProviderOpenAIRealtime)
		utils.WriteJSONResponse(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var event model.RealtimeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warn("Unparseable realtime webhook body", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "unparseable body"})
		return
	}
	if err := validator.Validate(event); err != nil {
		log.Warn("Invalid realtime webhook event", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	nc := normalize.Realtime(event)
	observer.IncWebhooksReceived(model.ProviderOpenAIRealtime, "")

	result, err := s.service.Ingest(ctx, nc, body)
	observer.ObserveWebhookProcessingDuration(model.ProviderOpenAIRealtime, orgLabel(result), time.Since(start))
	if err != nil {
		if errors.Is(err, apperrors.ErrUnrouted) {
			// Unknown number: reject the call instead of connecting a caller
			// to nobody.
			utils.WriteJSONResponse(w, http.StatusOK, realtimeResponse{Action: "rejected"})
			return
		}
		log.Error("Realtime webhook processing failed", zap.Error(err))
		observer.IncWebhooksFailed(model.ProviderOpenAIRealtime, orgLabel(result))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	if event.Type == model.RealtimeEventIncomingCall {
		utils.WriteJSONResponse(w, http.StatusOK, realtimeResponse{Action: "accepted"})
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
