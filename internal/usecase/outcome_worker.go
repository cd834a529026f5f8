package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/config"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/storage"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
)

// maxOutcomeErrorLen bounds the stored error text so a pathological error
// string cannot bloat the outcomes table.
const maxOutcomeErrorLen = 500

// OutcomeTaskData holds one ingestion outcome or audit entry to record.
type OutcomeTaskData struct {
	Ctx     context.Context // Context derived for the task, NOT the original request context
	Outcome *model.IngestionOutcome
	Audit   *model.AuditLog
}

// IOutcomeWorker defines the interface for the outcome recorder pool.
type IOutcomeWorker interface {
	RecordOutcome(ctx context.Context, outcome model.IngestionOutcome)
	RecordAudit(ctx context.Context, entry model.AuditLog)
	Stop()
}

// OutcomeWorker records ingestion outcomes and audit entries off the request
// path. Recording is strictly best-effort: submission failures and write
// failures are logged and swallowed, never surfaced to the ingestion they
// describe. When the pool saturates, tasks are dropped and counted rather
// than blocking a webhook response.
type OutcomeWorker struct {
	pool       *ants.PoolWithFunc
	repo       storage.OutcomeRepo
	cfg        config.OutcomeWorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure OutcomeWorker implements IOutcomeWorker
var _ IOutcomeWorker = (*OutcomeWorker)(nil)

// NewOutcomeWorker creates and initializes the outcome recorder pool.
func NewOutcomeWorker(
	cfg config.OutcomeWorkerPoolConfig,
	repo storage.OutcomeRepo,
	baseLogger *zap.Logger,
) (*OutcomeWorker, error) {
	worker := &OutcomeWorker{
		repo:       repo,
		cfg:        cfg,
		baseLogger: baseLogger.Named("outcome_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(OutcomeTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(true),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in outcome worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create outcome worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Outcome worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// RecordOutcome submits an ingestion outcome for recording. Never returns an
// error; a full pool drops the task with a metric and a log line.
func (w *OutcomeWorker) RecordOutcome(ctx context.Context, outcome model.IngestionOutcome) {
	outcome.Error = truncateError(outcome.Error)
	if outcome.Status == model.OutcomePersisted {
		// Raw payloads are only kept where they help debugging.
		outcome.Payload = nil
	}
	w.submit(OutcomeTaskData{Ctx: detachContext(ctx), Outcome: &outcome})
	observer.IncOutcomeTasksSubmitted(outcome.Status)
}

// RecordAudit submits an audit entry for recording. Never returns an error.
func (w *OutcomeWorker) RecordAudit(ctx context.Context, entry model.AuditLog) {
	w.submit(OutcomeTaskData{Ctx: detachContext(ctx), Audit: &entry})
	observer.IncOutcomeTasksSubmitted("audit")
}

func (w *OutcomeWorker) submit(taskData OutcomeTaskData) {
	observer.SetOutcomeQueueLength(w.pool.Waiting())
	if err := w.pool.Invoke(taskData); err != nil {
		observer.IncOutcomeTasksDropped()
		w.baseLogger.Warn("Dropped outcome task, pool saturated or stopped", zap.Error(err))
	}
}

// processTask runs on a pool goroutine with a fresh timeout, detached from
// the originating request.
func (w *OutcomeWorker) processTask(taskData OutcomeTaskData) {
	ctx, cancel := context.WithTimeout(taskData.Ctx, 10*time.Second)
	defer cancel()

	log := logger.FromContextOr(taskData.Ctx, w.baseLogger)

	switch {
	case taskData.Outcome != nil:
		if err := w.repo.SaveOutcome(ctx, *taskData.Outcome); err != nil {
			log.Warn("Failed to record ingestion outcome",
				zap.String("provider", taskData.Outcome.Provider),
				zap.String("status", taskData.Outcome.Status),
				zap.Error(err))
		}
	case taskData.Audit != nil:
		if err := w.repo.SaveAuditLog(ctx, *taskData.Audit); err != nil {
			log.Warn("Failed to record audit entry",
				zap.String("action", taskData.Audit.Action),
				zap.Error(err))
		}
	default:
		log.Error("Outcome task carried neither outcome nor audit entry")
	}
}

// Stop gracefully shuts down the pool, letting queued tasks drain.
func (w *OutcomeWorker) Stop() {
	if w.pool != nil {
		w.pool.Release()
		w.baseLogger.Info("Outcome worker pool stopped")
	}
}

// truncateError bounds an error string for storage.
func truncateError(s string) string {
	if len(s) > maxOutcomeErrorLen {
		return s[:maxOutcomeErrorLen]
	}
	return s
}

// detachContext keeps the request's logger and tenant values but discards its
// cancellation, so an already-answered webhook cannot cancel the write.
func detachContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// FallbackOutcome builds a failed outcome record from a raw payload.
func FallbackOutcome(provider, externalID, orgID string, payload []byte, err error) model.IngestionOutcome {
	outcome := model.IngestionOutcome{
		Provider:   provider,
		ExternalID: externalID,
		OrgID:      orgID,
		Status:     model.OutcomeFailed,
	}
	if err != nil {
		outcome.Error = err.Error()
	}
	if len(payload) > 0 {
		outcome.Payload = datatypes.JSON(payload)
	}
	return outcome
}
