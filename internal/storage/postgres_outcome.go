package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Ingestion Outcome / Audit Log Repository Methods ---
//
// Both tables are write-only audit trails consumed by the outcome worker.
// They take no tenant context: outcomes are often recorded before routing
// resolved an organization, and a failed routing is exactly the case worth
// recording.

// SaveIngestionOutcome records one webhook processing outcome.
func (r *PostgresRepo) SaveIngestionOutcome(ctx context.Context, outcome model.IngestionOutcome) error {
	if outcome.Status == "" {
		return fmt.Errorf("%w: ingestion outcome requires a status", apperrors.ErrBadRequest)
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&outcome).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveIngestionOutcome", operation)
	observer.ObserveDbOperationDuration("save", "ingestion_outcome", outcome.OrgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save ingestion outcome after retries",
			zap.String("provider", outcome.Provider),
			zap.String("status", outcome.Status),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// SaveAuditLog records one audit entry.
func (r *PostgresRepo) SaveAuditLog(ctx context.Context, entry model.AuditLog) error {
	if entry.Action == "" {
		return fmt.Errorf("%w: audit entry requires an action", apperrors.ErrBadRequest)
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&entry).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveAuditLog", operation)
	observer.ObserveDbOperationDuration("save", "audit_log", entry.OrgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save audit log after retries",
			zap.String("action", entry.Action),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
