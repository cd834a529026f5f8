package webhook

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/config"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

const vapiToolCallsBody = `{
	"message": {
		"type": "tool-calls",
		"call": {"id": "vapi-call-1", "customer": {"number": "+18505551234", "name": "Jane Doe"}},
		"phoneNumber": {"number": "+18665550100"},
		"toolCallList": [
			{"id": "tc-1", "function": {"name": "update_lead", "arguments": {"status": "contacted"}}}
		]
	}
}`

func vapiSecretHeader(secret string) map[string]string {
	return map[string]string{"X-Vapi-Secret": secret}
}

func TestVapiHandler_RejectsBadSecret(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{VapiSecret: "s3cret"})

	recorder := postJSON(t, deps.server, "/webhooks/vapi", vapiToolCallsBody, vapiSecretHeader("wrong"))

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	deps.webhookEventRepo.AssertNotCalled(t, "InsertOnce", mock.Anything, mock.Anything)
}

func TestVapiHandler_RejectsUnparseableBody(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{})

	recorder := postJSON(t, deps.server, "/webhooks/vapi", `{not json`, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestVapiHandler_RejectsMissingCallID(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{})

	recorder := postJSON(t, deps.server, "/webhooks/vapi", `{"message":{"type":"status-update"}}`, nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	deps.webhookEventRepo.AssertNotCalled(t, "InsertOnce", mock.Anything, mock.Anything)
}

func TestVapiHandler_ToolCallsReturnResults(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{VapiSecret: "s3cret"})

	deps.webhookEventRepo.On("InsertOnce", mock.Anything, mock.AnythingOfType("model.WebhookEvent")).Return(nil)
	deps.orgRepo.On("FindByInboundNumber", mock.Anything, "+18665550100").
		Return(model.NewOrganization(&model.Organization{ID: "org-1"}), nil)
	deps.callRepo.On("Upsert", mock.Anything, mock.AnythingOfType("model.Call")).
		Return(&model.Call{ID: "call-1", OrgID: "org-1", LeadID: "lead-1"}, nil)
	deps.leadRepo.On("Update", mock.Anything, "lead-1", map[string]interface{}{
		"status": model.LeadStatusContacted,
	}).Return(nil)

	recorder := postJSON(t, deps.server, "/webhooks/vapi", vapiToolCallsBody, vapiSecretHeader("s3cret"))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	results, ok := body["results"].([]interface{})
	require.True(t, ok, "expected a results array, got %v", body)
	require.Len(t, results, 1)

	entry := results[0].(map[string]interface{})
	assert.Equal(t, "tc-1", entry["toolCallId"])
	assert.Contains(t, entry["result"], "updated")
	assert.Empty(t, entry["error"])
	deps.leadRepo.AssertExpectations(t)
}

func TestVapiHandler_LaterToolCallsInSameCallStillExecute(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{})

	var gateKeys []string
	deps.webhookEventRepo.On("InsertOnce", mock.Anything, mock.AnythingOfType("model.WebhookEvent")).
		Run(func(args mock.Arguments) {
			gateKeys = append(gateKeys, args.Get(1).(model.WebhookEvent).ExternalID)
		}).
		Return(nil)
	deps.orgRepo.On("FindByInboundNumber", mock.Anything, "+18665550100").
		Return(model.NewOrganization(&model.Organization{ID: "org-1"}), nil)
	deps.callRepo.On("Upsert", mock.Anything, mock.AnythingOfType("model.Call")).
		Return(&model.Call{ID: "call-1", OrgID: "org-1", LeadID: "lead-1"}, nil)
	deps.leadRepo.On("Update", mock.Anything, "lead-1", map[string]interface{}{
		"status": model.LeadStatusContacted,
	}).Return(nil)
	deps.intakeRepo.On("UpsertAnswers", mock.Anything, "lead-1", map[string]interface{}{
		"urgency": float64(9),
	}).Return(model.NewIntake(&model.Intake{ID: "intake-1", OrgID: "org-1", LeadID: "lead-1"}), nil)

	first := postJSON(t, deps.server, "/webhooks/vapi", vapiToolCallsBody, nil)
	require.Equal(t, http.StatusOK, first.Code)

	// The assistant calls back mid-conversation with a second batch of tools
	// for the same call.
	laterBody := `{
		"message": {
			"type": "tool-calls",
			"call": {"id": "vapi-call-1", "customer": {"number": "+18505551234", "name": "Jane Doe"}},
			"phoneNumber": {"number": "+18665550100"},
			"toolCallList": [
				{"id": "tc-2", "function": {"name": "save_intake_answers", "arguments": {"answers": {"urgency": 9}}}}
			]
		}
	}`
	second := postJSON(t, deps.server, "/webhooks/vapi", laterBody, nil)

	require.Equal(t, http.StatusOK, second.Code)
	results, ok := decodeBody(t, second)["results"].([]interface{})
	require.True(t, ok, "second delivery must execute its tools, not dedup")
	require.Len(t, results, 1)
	entry := results[0].(map[string]interface{})
	assert.Equal(t, "tc-2", entry["toolCallId"])
	assert.Empty(t, entry["error"])

	require.Len(t, gateKeys, 2)
	assert.NotEqual(t, gateKeys[0], gateKeys[1])
	deps.intakeRepo.AssertExpectations(t)
}

func TestVapiHandler_DuplicateDeliverySkipsToolExecution(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{VapiSecret: "s3cret"})

	deps.webhookEventRepo.On("InsertOnce", mock.Anything, mock.AnythingOfType("model.WebhookEvent")).
		Return(apperrors.ErrDuplicate)

	recorder := postJSON(t, deps.server, "/webhooks/vapi", vapiToolCallsBody, vapiSecretHeader("s3cret"))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", decodeBody(t, recorder)["status"])
	// The tools must not run again on redelivery.
	deps.leadRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestVapiHandler_EndOfCallReportQualifies(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{})
	body := `{
		"message": {
			"type": "end-of-call-report",
			"call": {"id": "vapi-call-2", "customer": {"number": "+18505551234"}},
			"phoneNumber": {"number": "+18665550100"},
			"summary": "Caller described a slip and fall",
			"durationSeconds": 312.7
		}
	}`

	deps.webhookEventRepo.On("InsertOnce", mock.Anything, mock.AnythingOfType("model.WebhookEvent")).Return(nil)
	deps.orgRepo.On("FindByInboundNumber", mock.Anything, "+18665550100").
		Return(model.NewOrganization(&model.Organization{ID: "org-1"}), nil)
	deps.callRepo.On("Upsert", mock.Anything, mock.AnythingOfType("model.Call")).
		Return(&model.Call{ID: "call-2", OrgID: "org-1", LeadID: "lead-1"}, nil)

	// Qualification chain off the end-of-call report.
	deps.leadRepo.On("FindByID", mock.Anything, "lead-1").
		Return(model.NewLead(&model.Lead{ID: "lead-1", OrgID: "org-1", ContactID: "contact-1", PracticeArea: "personal_injury"}), nil)
	deps.orgRepo.On("FindByID", mock.Anything, "org-1").
		Return(model.NewOrganization(&model.Organization{ID: "org-1"}), nil)
	deps.contactRepo.On("FindByID", mock.Anything, "contact-1").
		Return(&model.Contact{ID: "contact-1", OrgID: "org-1", Name: "Jane", PhoneE164: "+18505551234"}, nil)
	deps.intakeRepo.On("FindByLeadID", mock.Anything, "lead-1").Return(nil, apperrors.ErrNotFound)
	deps.callRepo.On("CountByLead", mock.Anything, "lead-1").Return(1, nil)
	deps.leadRepo.On("ApplyQualification", mock.Anything, "lead-1", mock.AnythingOfType("int"),
		mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	recorder := postJSON(t, deps.server, "/webhooks/vapi", body, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ok", decodeBody(t, recorder)["status"])
	deps.leadRepo.AssertExpectations(t)
}

func TestVapiHandler_UnroutedNumberIgnored(t *testing.T) {
	deps := newTestServer(t, config.ProvidersConfig{})

	deps.webhookEventRepo.On("InsertOnce", mock.Anything, mock.AnythingOfType("model.WebhookEvent")).Return(nil)
	deps.orgRepo.On("FindByInboundNumber", mock.Anything, "+18665550100").
		Return(nil, apperrors.ErrUnrouted)

	recorder := postJSON(t, deps.server, "/webhooks/vapi", vapiToolCallsBody, nil)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "ignored", decodeBody(t, recorder)["status"])
}
