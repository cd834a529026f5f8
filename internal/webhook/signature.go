package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// Header names used for webhook authentication.
const (
	headerVapiSecret        = "X-Vapi-Secret"
	headerTwilioSignature   = "X-Twilio-Signature"
	headerWebhookID         = "Webhook-Id"
	headerWebhookTimestamp  = "Webhook-Timestamp"
	headerWebhookSignature  = "Webhook-Signature"
	standardWebhookVersion  = "v1"
	signingSecretPrefix     = "whsec_"
)

// verifyVapiSecret checks the shared-secret header Vapi sends with every
// webhook. Constant-time compare; header casing is normalized by net/http.
func verifyVapiSecret(r *http.Request, secret string) bool {
	if secret == "" {
		// Unconfigured secret means verification is off. Loud on purpose.
		logger.FromContext(r.Context()).Warn("Vapi webhook secret not configured, accepting unverified request")
		return true
	}
	got := r.Header.Get(headerVapiSecret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// twilioVerifier validates X-Twilio-Signature headers against the public URL
// Twilio signed, which can differ from the locally observed URL behind a
// proxy.
type twilioVerifier struct {
	validator     twilioclient.RequestValidator
	publicBaseURL string
	enabled       bool
}

func newTwilioVerifier(authToken, publicBaseURL string) *twilioVerifier {
	return &twilioVerifier{
		validator:     twilioclient.NewRequestValidator(authToken),
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
		enabled:       authToken != "",
	}
}

// verify checks the signature over the full public URL plus the sorted form
// parameters, per Twilio's signing scheme.
func (v *twilioVerifier) verify(r *http.Request, form url.Values) bool {
	if !v.enabled {
		logger.FromContext(r.Context()).Warn("Twilio auth token not configured, accepting unverified request")
		return true
	}

	signature := r.Header.Get(headerTwilioSignature)
	if signature == "" {
		return false
	}

	fullURL := v.publicBaseURL + r.URL.RequestURI()
	params := make(map[string]string, len(form))
	for key := range form {
		params[key] = form.Get(key)
	}
	return v.validator.Validate(fullURL, params, signature)
}

// verifyStandardWebhook checks a Standard Webhooks signature (webhook-id,
// webhook-timestamp, webhook-signature headers; HMAC-SHA256 over
// "id.timestamp.body" keyed by the base64 secret behind the whsec_ prefix).
// OpenAI signs Realtime SIP events this way.
func verifyStandardWebhook(r *http.Request, body []byte, signingSecret string, maxSkew time.Duration) bool {
	log := logger.FromContext(r.Context())

	if signingSecret == "" {
		log.Warn("Webhook signing secret not configured, accepting unverified request")
		return true
	}

	id := r.Header.Get(headerWebhookID)
	timestamp := r.Header.Get(headerWebhookTimestamp)
	signatureHeader := r.Header.Get(headerWebhookSignature)
	if id == "" || timestamp == "" || signatureHeader == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := utils.Now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		log.Warn("Webhook timestamp outside tolerance",
			zap.String("webhook_id", id),
			zap.Duration("skew", skew))
		return false
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(signingSecret, signingSecretPrefix))
	if err != nil {
		log.Error("Undecodable webhook signing secret", zap.Error(err))
		return false
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	// The header carries space-separated "version,signature" entries; any
	// matching v1 entry passes.
	for _, entry := range strings.Fields(signatureHeader) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != standardWebhookVersion {
			continue
		}
		got, decodeErr := base64.StdEncoding.DecodeString(parts[1])
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return true
		}
	}
	return false
}
