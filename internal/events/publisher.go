package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// Lifecycle event subjects. Downstream consumers (notifications, CRM sync)
// subscribe to these; this service only publishes.
const (
	SubjectLeadCreated   = "v1.leads.created"
	SubjectLeadQualified = "v1.leads.qualified"
	SubjectCallCompleted = "v1.calls.completed"
)

// Publisher emits lead lifecycle events. Publishing is best-effort: a broker
// outage degrades downstream freshness but never fails webhook processing.
type Publisher interface {
	PublishLeadCreated(ctx context.Context, lead model.Lead)
	PublishLeadQualified(ctx context.Context, lead model.Lead)
	PublishCallCompleted(ctx context.Context, call model.Call)
	Close()
}

// LeadEvent is the wire form of a lead lifecycle event.
type LeadEvent struct {
	OrgID       string `json:"org_id"`
	LeadID      string `json:"lead_id"`
	ContactID   string `json:"contact_id"`
	Status      string `json:"status"`
	Score       *int   `json:"score,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	OccurredAt  int64  `json:"occurred_at"`
}

// CallEvent is the wire form of a call lifecycle event.
type CallEvent struct {
	OrgID           string `json:"org_id"`
	CallID          string `json:"call_id"`
	LeadID          string `json:"lead_id,omitempty"`
	Provider        string `json:"provider"`
	DurationSeconds int    `json:"duration_seconds"`
	OccurredAt      int64  `json:"occurred_at"`
}

// JetStreamPublisher publishes lifecycle events to a NATS JetStream stream.
type JetStreamPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

var _ Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher connects to NATS and ensures the lifecycle stream
// exists. An existing stream is left untouched regardless of its config so
// operators can tune retention without fighting the service.
func NewJetStreamPublisher(url, streamName, subjectWildcard string) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.StreamInfo(streamName)
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		nc.Close()
		return nil, fmt.Errorf("failed to get stream info for '%s': %w", streamName, err)
	}
	if stream == nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{subjectWildcard},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to add stream '%s': %w", streamName, err)
		}
		logger.Log.Info("Created lifecycle event stream",
			zap.String("name", streamName),
			zap.String("subjects", subjectWildcard))
	}

	return &JetStreamPublisher{nc: nc, js: js}, nil
}

// PublishLeadCreated emits a lead-created event.
func (p *JetStreamPublisher) PublishLeadCreated(ctx context.Context, lead model.Lead) {
	p.publish(ctx, SubjectLeadCreated, LeadEvent{
		OrgID:      lead.OrgID,
		LeadID:     lead.ID,
		ContactID:  lead.ContactID,
		Status:     lead.Status,
		OccurredAt: utils.Now().Unix(),
	})
}

// PublishLeadQualified emits a lead-qualified event carrying the scoring result.
func (p *JetStreamPublisher) PublishLeadQualified(ctx context.Context, lead model.Lead) {
	p.publish(ctx, SubjectLeadQualified, LeadEvent{
		OrgID:       lead.OrgID,
		LeadID:      lead.ID,
		ContactID:   lead.ContactID,
		Status:      lead.Status,
		Score:       lead.Score,
		Disposition: lead.Disposition,
		OccurredAt:  utils.Now().Unix(),
	})
}

// PublishCallCompleted emits a call-completed event.
func (p *JetStreamPublisher) PublishCallCompleted(ctx context.Context, call model.Call) {
	p.publish(ctx, SubjectCallCompleted, CallEvent{
		OrgID:           call.OrgID,
		CallID:          call.ID,
		LeadID:          call.LeadID,
		Provider:        call.Provider,
		DurationSeconds: call.DurationSeconds,
		OccurredAt:      utils.Now().Unix(),
	})
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, payload interface{}) {
	data := utils.MustMarshalJSON(payload)
	_, err := p.js.Publish(subject, data)
	observer.IncEventsPublished(subject, err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to publish lifecycle event",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	logger.FromContext(ctx).Debug("Published lifecycle event", zap.String("subject", subject))
}

// Close drains the NATS connection.
func (p *JetStreamPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			logger.Log.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
}

// NoopPublisher discards events, used when NATS is not configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

func (NoopPublisher) PublishLeadCreated(context.Context, model.Lead)   {}
func (NoopPublisher) PublishLeadQualified(context.Context, model.Lead) {}
func (NoopPublisher) PublishCallCompleted(context.Context, model.Call) {}
func (NoopPublisher) Close()                                           {}
