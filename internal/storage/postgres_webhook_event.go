package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Webhook Event Repository Methods ---

// InsertWebhookEventOnce records a webhook delivery, returning
// apperrors.ErrDuplicate when the (provider, external_id) pair was seen
// before. The unique index does the racing; concurrent deliveries of the
// same event resolve to exactly one winner with no advisory locks. Callers
// treat ErrDuplicate as "already processed, acknowledge and stop".
func (r *PostgresRepo) InsertWebhookEventOnce(ctx context.Context, event model.WebhookEvent) error {
	if event.Provider == "" || event.ExternalID == "" {
		return fmt.Errorf("%w: webhook event requires provider and external_id", apperrors.ErrBadRequest)
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&event).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "InsertWebhookEventOnce", operation)
	observer.ObserveDbOperationDuration("insert_once", "webhook_event", "", time.Since(startTime), commitErr)
	if commitErr != nil {
		if errors.Is(commitErr, apperrors.ErrDuplicate) {
			logger.FromContext(ctx).Debug("Webhook event already recorded",
				zap.String("provider", event.Provider),
				zap.String("external_id", event.ExternalID))
			return commitErr
		}
		logger.FromContext(ctx).Error("Failed to record webhook event after retries",
			zap.String("provider", event.Provider),
			zap.String("external_id", event.ExternalID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
