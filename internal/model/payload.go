package model

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Provider payloads are modeled as one explicit struct per provider rather
// than ad-hoc optional-field probing, so the normalizer's mapping stays
// exhaustive and testable.

// --- Twilio ---

// TwilioVoicePayload is the form-encoded body Twilio posts for voice webhooks.
type TwilioVoicePayload struct {
	CallSid      string `json:"CallSid"` // absent on SMS webhooks, which carry MessageSid
	AccountSid   string `json:"AccountSid"`
	From         string `json:"From"`
	To           string `json:"To"`
	CallStatus   string `json:"CallStatus"`
	Direction    string `json:"Direction"`
	CallerName   string `json:"CallerName"`
	CallDuration int    `json:"CallDuration"`
	Body         string `json:"Body"` // present on SMS webhooks
	MessageSid   string `json:"MessageSid"`
}

// ParseTwilioVoicePayload decodes Twilio's application/x-www-form-urlencoded body.
func ParseTwilioVoicePayload(form url.Values) TwilioVoicePayload {
	duration, _ := strconv.Atoi(form.Get("CallDuration"))
	return TwilioVoicePayload{
		CallSid:      form.Get("CallSid"),
		AccountSid:   form.Get("AccountSid"),
		From:         form.Get("From"),
		To:           form.Get("To"),
		CallStatus:   form.Get("CallStatus"),
		Direction:    form.Get("Direction"),
		CallerName:   form.Get("CallerName"),
		CallDuration: duration,
		Body:         form.Get("Body"),
		MessageSid:   form.Get("MessageSid"),
	}
}

// ExternalID returns the provider-side dedup key: the message SID for SMS
// webhooks, otherwise the call SID suffixed with the call status so that
// distinct lifecycle callbacks for one call are not collapsed.
func (p TwilioVoicePayload) ExternalID() string {
	if p.MessageSid != "" {
		return p.MessageSid
	}
	if p.CallStatus != "" {
		return p.CallSid + ":" + p.CallStatus
	}
	return p.CallSid
}

// --- Vapi ---

// Vapi message types this service handles.
const (
	VapiMessageToolCalls       = "tool-calls"
	VapiMessageEndOfCallReport = "end-of-call-report"
	VapiMessageStatusUpdate    = "status-update"
)

// VapiEnvelope is the JSON body Vapi posts to the server webhook.
type VapiEnvelope struct {
	Message VapiMessage `json:"message"`
}

// VapiMessage is the inner message of a Vapi webhook.
type VapiMessage struct {
	Type         string          `json:"type" validate:"required"`
	Call         VapiCall        `json:"call"`
	PhoneNumber  VapiPhoneNumber `json:"phoneNumber"`
	Customer     VapiCustomer    `json:"customer"`
	ToolCallList []VapiToolCall  `json:"toolCallList"`
	Status       string          `json:"status"`
	EndedReason  string          `json:"endedReason"`
	Summary      string          `json:"summary"`
	DurationSecs float64         `json:"durationSeconds"`
	Timestamp    int64           `json:"timestamp"`
}

// VapiCall identifies the live call the message belongs to.
type VapiCall struct {
	ID       string       `json:"id"`
	Customer VapiCustomer `json:"customer"`
}

// VapiCustomer carries caller identity as Vapi knows it.
type VapiCustomer struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// VapiPhoneNumber is the provisioned number that received the call.
type VapiPhoneNumber struct {
	Number string `json:"number"`
}

// VapiToolCall is one structured action the assistant asked the server to run.
type VapiToolCall struct {
	ID       string           `json:"id"`
	Function VapiToolFunction `json:"function"`
}

// VapiToolFunction carries the action name and its raw argument bag.
// Arguments arrive as either a JSON object or a JSON-encoded string
// depending on the model; keep them raw and let the executor decode.
type VapiToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// VapiToolCallResult is the per-tool-call entry of the webhook response.
type VapiToolCallResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CallerNumber returns the caller number from whichever field carries it.
func (m VapiMessage) CallerNumber() string {
	if m.Customer.Number != "" {
		return m.Customer.Number
	}
	return m.Call.Customer.Number
}

// ExternalID returns the provider-side dedup key. The call ID and message
// type alone are not enough: a live call issues tool-calls and status-update
// webhooks repeatedly, so each delivery carries a discriminator. For
// tool-calls that is the first tool call ID, unique per batch; otherwise the
// message timestamp. A provider retry repeats the same message and maps to
// the same key, which is what the gate suppresses.
func (m VapiMessage) ExternalID() string {
	key := m.Call.ID + ":" + m.Type
	if m.Type == VapiMessageToolCalls && len(m.ToolCallList) > 0 {
		return key + ":" + m.ToolCallList[0].ID
	}
	if m.Timestamp > 0 {
		return key + ":" + strconv.FormatInt(m.Timestamp, 10)
	}
	return key
}

// CallerName returns the caller name from whichever field carries it.
func (m VapiMessage) CallerName() string {
	if m.Customer.Name != "" {
		return m.Customer.Name
	}
	return m.Call.Customer.Name
}

// --- OpenAI Realtime ---

// RealtimeEvent is the JSON body OpenAI posts for Realtime SIP call events,
// signed per the Standard Webhooks spec.
type RealtimeEvent struct {
	ID        string            `json:"id" validate:"required"`
	Object    string            `json:"object"`
	Type      string            `json:"type" validate:"required"` // e.g. realtime.call.incoming
	CreatedAt int64             `json:"created_at"`
	Data      RealtimeCallData  `json:"data"`
}

// RealtimeCallData identifies the SIP call behind a realtime event.
type RealtimeCallData struct {
	CallID     string              `json:"call_id"`
	SIPHeaders []RealtimeSIPHeader `json:"sip_headers"`
}

// RealtimeSIPHeader is one SIP header forwarded with the event.
type RealtimeSIPHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SIPHeader returns the value of the named SIP header, or "".
func (d RealtimeCallData) SIPHeader(name string) string {
	for _, h := range d.SIPHeaders {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// RealtimeEventIncomingCall is the event type emitted when a SIP call arrives.
const RealtimeEventIncomingCall = "realtime.call.incoming"

// --- Normalized form ---

// NormalizedCall is the provider-independent view the ingestion service works
// with after normalization.
type NormalizedCall struct {
	Provider    string
	ExternalID  string // provider dedup key for the webhook event
	CallID      string // provider call identifier
	FromE164    string
	ToE164      string
	DisplayName string
	Channel     string // voice or sms
	Status      string
	Summary     string
	DurationSec int
	Metadata    map[string]interface{}
}

// --- Tool-call arguments ---

// Tool-call action names the executor dispatches on.
const (
	ToolCreateLead        = "create_lead"
	ToolSaveIntakeAnswers = "save_intake_answers"
	ToolUpdateLead        = "update_lead"
	ToolWarmTransfer      = "warm_transfer"
	ToolEndCall           = "end_call"
)

// CreateLeadArgs are the arguments of the create_lead tool call.
type CreateLeadArgs struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	PracticeArea string `json:"practice_area"`
	Summary      string `json:"summary"`
	Channel      string `json:"channel"`
}

// SaveIntakeAnswersArgs are the arguments of the save_intake_answers tool
// call. Answers stay raw: malformed JSON from the model is tolerated by
// wrapping it as raw text instead of rejecting the call.
type SaveIntakeAnswersArgs struct {
	Answers json.RawMessage `json:"answers"`
}

// UpdateLeadArgs are the arguments of the update_lead tool call. Only fields
// that are present are applied; an empty update succeeds as a no-op.
type UpdateLeadArgs struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Summary  string `json:"summary"`
}

// WarmTransferArgs are the arguments of the warm_transfer tool call.
type WarmTransferArgs struct {
	Reason  string `json:"reason"`
	Urgency string `json:"urgency"`
}

// EndCallArgs are the arguments of the end_call tool call.
type EndCallArgs struct {
	Outcome string `json:"outcome"` // e.g. intake_complete, caller_hung_up, transferred
	Summary string `json:"summary"`
}

// OutcomeCompletesIntake reports whether the end_call outcome means the
// intake conversation finished normally.
func (a EndCallArgs) OutcomeCompletesIntake() bool {
	switch a.Outcome {
	case "intake_complete", "completed", "transferred":
		return true
	}
	return false
}

// ToolResult is the uniform result of executing one tool call. Execution
// never panics or returns a Go error to the webhook loop; failures are
// carried in Error so one bad action cannot abort the call session.
type ToolResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
