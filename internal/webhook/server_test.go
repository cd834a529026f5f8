package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/config"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	storagemock "gitlab.com/caselane/api/caselane-intake-processor/internal/storage/mock"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/usecase"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zaptest.NewLogger(nil).Named("test")
}

// nopPublisher satisfies events.Publisher for handler tests.
type nopPublisher struct{}

func (nopPublisher) PublishLeadCreated(context.Context, model.Lead)   {}
func (nopPublisher) PublishLeadQualified(context.Context, model.Lead) {}
func (nopPublisher) PublishCallCompleted(context.Context, model.Call) {}
func (nopPublisher) Close()                                           {}

// nopWorker satisfies usecase.IOutcomeWorker for handler tests.
type nopWorker struct{}

func (nopWorker) RecordOutcome(context.Context, model.IngestionOutcome) {}
func (nopWorker) RecordAudit(context.Context, model.AuditLog)           {}
func (nopWorker) Stop()                                                 {}

// serverDeps bundles a webhook server with its mocked repositories.
type serverDeps struct {
	orgRepo          *storagemock.OrgRepoMock
	contactRepo      *storagemock.ContactRepoMock
	leadRepo         *storagemock.LeadRepoMock
	intakeRepo       *storagemock.IntakeRepoMock
	callRepo         *storagemock.CallRepoMock
	webhookEventRepo *storagemock.WebhookEventRepoMock
	server           *Server
}

func newTestServer(t *testing.T, cfg config.ProvidersConfig) *serverDeps {
	logger.Log = zaptest.NewLogger(t).Named("test")

	deps := &serverDeps{
		orgRepo:          new(storagemock.OrgRepoMock),
		contactRepo:      new(storagemock.ContactRepoMock),
		leadRepo:         new(storagemock.LeadRepoMock),
		intakeRepo:       new(storagemock.IntakeRepoMock),
		callRepo:         new(storagemock.CallRepoMock),
		webhookEventRepo: new(storagemock.WebhookEventRepoMock),
	}
	service := usecase.NewIntakeService(
		deps.orgRepo,
		deps.contactRepo,
		deps.leadRepo,
		deps.intakeRepo,
		deps.callRepo,
		deps.webhookEventRepo,
		nopPublisher{},
		nopWorker{},
	)
	deps.server = NewServer(0, service, cfg)
	return deps
}

func postForm(t *testing.T, s *Server, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func postJSON(t *testing.T, s *Server, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}
