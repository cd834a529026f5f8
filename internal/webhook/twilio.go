package webhook

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/normalize"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/usecase"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// handleTwilio terminates Twilio voice and SMS webhooks. Twilio posts
// form-encoded bodies and retries on non-2xx, so anything that should not be
// redelivered (duplicates, unrouted numbers) answers 200.
func (s *Server) handleTwilio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := r.ParseForm(); err != nil {
		log.Warn("Unparseable Twilio webhook body", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "unparseable body"})
		return
	}

	if !s.twilio.verify(r, r.PostForm) {
		log.Warn("Rejected Twilio webhook with bad signature")
		observer.IncWebhooksRejected(model.ProviderTwilio)
		utils.WriteJSONResponse(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	payload := model.ParseTwilioVoicePayload(r.PostForm)
	if payload.CallSid == "" && payload.MessageSid == "" {
		log.Warn("Twilio webhook missing CallSid and MessageSid")
		utils.WriteJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "missing identifier"})
		return
	}

	nc := normalize.TwilioVoice(payload)
	observer.IncWebhooksReceived(model.ProviderTwilio, "")

	result, err := s.service.Ingest(ctx, nc, []byte(r.PostForm.Encode()))
	observer.ObserveWebhookProcessingDuration(model.ProviderTwilio, orgLabel(result), time.Since(start))
	if err != nil {
		if errors.Is(err, apperrors.ErrUnrouted) {
			utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		log.Error("Twilio webhook processing failed", zap.Error(err))
		observer.IncWebhooksFailed(model.ProviderTwilio, orgLabel(result))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}

	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// orgLabel extracts the org label for metrics from a possibly nil result.
func orgLabel(result *usecase.IngestResult) string {
	if result == nil {
		return ""
	}
	return result.OrgID
}
