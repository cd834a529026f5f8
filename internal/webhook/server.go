package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/config"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/usecase"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
)

// Server terminates provider webhooks. Each provider gets its own route and
// handler; all of them funnel into the same ingestion pipeline.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	service    *usecase.IntakeService
	cfg        config.ProvidersConfig

	twilio *twilioVerifier
}

// NewServer creates the webhook server and wires its routes.
func NewServer(port int, service *usecase.IntakeService, cfg config.ProvidersConfig) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		cfg:     cfg,
		twilio:  newTwilioVerifier(cfg.TwilioAuthToken, cfg.PublicWebhookBase),
	}

	s.router.Use(requestIDMiddleware)
	s.router.HandleFunc("/webhooks/twilio/voice", s.handleTwilio).Methods(http.MethodPost)
	s.router.HandleFunc("/webhooks/twilio/sms", s.handleTwilio).Methods(http.MethodPost)
	s.router.HandleFunc("/webhooks/vapi", s.handleVapi).Methods(http.MethodPost)
	s.router.HandleFunc("/webhooks/openai/realtime", s.handleRealtime).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	logger.Log.Info("Starting webhook server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestIDMiddleware stamps every request with an ID that rides the context
// into logs.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx := tenant.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
