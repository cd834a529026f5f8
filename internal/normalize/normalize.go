package normalize

import (
	"strings"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

// Phone normalizes a raw phone string to E.164-ish form:
//
//   - non-digit characters are stripped
//   - 10-digit numbers are treated as US and get a +1 prefix
//   - 11-digit numbers starting with 1 get a bare + prefix
//   - any other digit string gets a bare + prefix
//
// The last rule can denormalize international numbers that were dialed
// without their country code. That matches the upstream providers' own
// behavior for US-centric tenants and is a known limitation, not validated
// against a phone-number library. Phone is idempotent: feeding its output
// back in returns the same value.
func Phone(raw string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return "+" + digits
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// callerNameKeys is the priority order of field name variants providers use
// for the caller's display name.
var callerNameKeys = []string{"callerName", "caller_name", "name", "fullName"}

// CallerName extracts a best-effort display name from a loosely shaped
// metadata bag. Top-level variants win over the nested caller object.
func CallerName(meta map[string]interface{}) string {
	if meta == nil {
		return ""
	}
	for _, key := range callerNameKeys {
		if name := stringField(meta, key); name != "" {
			return name
		}
	}
	if caller, ok := meta["caller"].(map[string]interface{}); ok {
		if name := stringField(caller, "name"); name != "" {
			return name
		}
		if name := stringField(caller, "fullName"); name != "" {
			return name
		}
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// TwilioVoice maps a Twilio voice/SMS webhook payload to the canonical call
// form.
func TwilioVoice(p model.TwilioVoicePayload) model.NormalizedCall {
	channel := model.SourceChannelVoice
	callID := p.CallSid
	if p.MessageSid != "" {
		channel = model.SourceChannelSMS
		callID = p.MessageSid
	}
	return model.NormalizedCall{
		Provider:    model.ProviderTwilio,
		ExternalID:  p.ExternalID(),
		CallID:      callID,
		FromE164:    Phone(p.From),
		ToE164:      Phone(p.To),
		DisplayName: strings.TrimSpace(p.CallerName),
		Channel:     channel,
		Status:      p.CallStatus,
		DurationSec: p.CallDuration,
		Metadata: map[string]interface{}{
			"account_sid": p.AccountSid,
			"direction":   p.Direction,
		},
	}
}

// Vapi maps a Vapi webhook message to the canonical call form. The external
// ID is per delivery, not per call: a live call sends tool-calls webhooks
// more than once, and only provider retries of one delivery may dedup.
func Vapi(m model.VapiMessage) model.NormalizedCall {
	return model.NormalizedCall{
		Provider:    model.ProviderVapi,
		ExternalID:  m.ExternalID(),
		CallID:      m.Call.ID,
		FromE164:    Phone(m.CallerNumber()),
		ToE164:      Phone(m.PhoneNumber.Number),
		DisplayName: strings.TrimSpace(m.CallerName()),
		Channel:     model.SourceChannelVoice,
		Status:      m.Status,
		Summary:     m.Summary,
		DurationSec: int(m.DurationSecs),
		Metadata: map[string]interface{}{
			"message_type": m.Type,
			"ended_reason": m.EndedReason,
		},
	}
}

// Realtime maps an OpenAI Realtime SIP event to the canonical call form.
// Caller and callee numbers ride in the forwarded SIP From/To headers.
func Realtime(e model.RealtimeEvent) model.NormalizedCall {
	return model.NormalizedCall{
		Provider:   model.ProviderOpenAIRealtime,
		ExternalID: e.ID,
		CallID:     e.Data.CallID,
		FromE164:   Phone(sipUser(e.Data.SIPHeader("From"))),
		ToE164:     Phone(sipUser(e.Data.SIPHeader("To"))),
		Channel:    model.SourceChannelVoice,
		Status:     e.Type,
		Metadata: map[string]interface{}{
			"event_type": e.Type,
		},
	}
}

// sipUser pulls the user part out of a SIP URI such as
// `"Jane Doe" <sip:+18505551234@sip.example.com>;tag=abc`.
func sipUser(header string) string {
	s := header
	if i := strings.Index(s, "sip:"); i >= 0 {
		s = s[i+len("sip:"):]
	}
	if i := strings.IndexAny(s, "@>;"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
