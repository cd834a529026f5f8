package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Call Repository Methods ---

// UpsertCall saves a call keyed by (provider, provider_call_id). Lifecycle
// webhooks for one call arrive in any order, so updates only fill forward:
// an ended call is never flipped back to in_progress, and zero-value fields
// on the incoming record do not erase stored ones.
func (r *PostgresRepo) UpsertCall(ctx context.Context, call model.Call) (*model.Call, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if orgID != call.OrgID {
		return nil, fmt.Errorf("%w: call OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, call.OrgID, orgID)
	}

	var saved model.Call
	operation := func() error {
		tx := r.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, tx.Error)
		}
		var txErr error
		defer func() {
			if r := recover(); r != nil {
				tx.Rollback()
				panic(r)
			} else if txErr != nil {
				if rbErr := tx.Rollback().Error; rbErr != nil {
					logger.FromContext(ctx).Error("Failed to rollback transaction after error", zap.Error(rbErr), zap.NamedError("originalTxError", txErr))
				}
			}
		}()

		var existing model.Call
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider = ? AND provider_call_id = ?", call.Provider, call.ProviderCallID).
			First(&existing)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				if call.ID == "" {
					call.ID = uuid.New().String()
				}
				if call.StartedAt.IsZero() {
					call.StartedAt = utils.Now()
				}
				if createErr := tx.Create(&call).Error; createErr != nil {
					txErr = checkConstraintViolation(createErr)
					return txErr
				}
				saved = call
			} else {
				txErr = fmt.Errorf("%w: failed to lock call row: %w", apperrors.ErrDatabase, findErr)
				return txErr
			}
		} else {
			updates := map[string]interface{}{"updated_at": utils.Now()}
			if call.Status != "" && existing.Status != model.CallStatusCompleted {
				updates["status"] = call.Status
			}
			if call.EndedAt != nil {
				updates["ended_at"] = call.EndedAt
			}
			if call.DurationSeconds > 0 {
				updates["duration_seconds"] = call.DurationSeconds
			}
			if call.Summary != "" {
				updates["summary"] = call.Summary
			}
			if call.FromE164 != "" && existing.FromE164 == "" {
				updates["from_e164"] = call.FromE164
			}
			if call.ToE164 != "" && existing.ToE164 == "" {
				updates["to_e164"] = call.ToE164
			}
			if call.LeadID != "" && existing.LeadID == "" {
				updates["lead_id"] = call.LeadID
			}
			if updateErr := tx.Model(&existing).Updates(updates).Error; updateErr != nil {
				txErr = checkConstraintViolation(updateErr)
				return txErr
			}
			saved = existing
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit call transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertCall Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "call", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert call after retries",
			zap.String("provider", call.Provider),
			zap.String("provider_call_id", call.ProviderCallID),
			zap.Error(commitErr))
		return nil, commitErr
	}
	return &saved, nil
}

// FindCallByProviderCallID finds a call by its provider dedup key.
func (r *PostgresRepo) FindCallByProviderCallID(ctx context.Context, provider, providerCallID string) (*model.Call, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var call model.Call
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("provider = ? AND provider_call_id = ? AND org_id = ?", provider, providerCallID, orgID).
			First(&call)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: call %s/%s: %w", apperrors.ErrNotFound, provider, providerCallID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindCallByProviderCallID", operation)
	observer.ObserveDbOperationDuration("find_by_provider_call_id", "call", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find call after retries",
			zap.String("provider", provider),
			zap.String("provider_call_id", providerCallID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &call, nil
}

// CountCallsByLead counts the calls attached to a lead, a scoring input.
func (r *PostgresRepo) CountCallsByLead(ctx context.Context, leadID string) (int, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Call{}).
			Where("lead_id = ? AND org_id = ?", leadID, orgID).
			Count(&count)
		if result.Error != nil {
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "CountCallsByLead", operation)
	observer.ObserveDbOperationDuration("count_by_lead", "call", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		logger.FromContext(ctx).Error("Failed to count calls by lead after retries",
			zap.String("lead_id", leadID),
			zap.Error(findErr))
		return 0, findErr
	}
	return int(count), nil
}

// AttachCallToLead links a call to a lead once the lead exists. Only unlinked
// calls are updated; a call never moves between leads.
func (r *PostgresRepo) AttachCallToLead(ctx context.Context, callID, leadID string) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Call{}).
			Where("id = ? AND org_id = ? AND (lead_id IS NULL OR lead_id = '')", callID, orgID).
			Updates(map[string]interface{}{
				"lead_id":    leadID,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AttachCallToLead", operation)
	observer.ObserveDbOperationDuration("attach_lead", "call", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to attach call to lead after retries",
			zap.String("call_id", callID),
			zap.String("lead_id", leadID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// SaveInteraction records a touchpoint on a lead.
func (r *PostgresRepo) SaveInteraction(ctx context.Context, interaction model.Interaction) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if orgID != interaction.OrgID {
		return fmt.Errorf("%w: interaction OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, interaction.OrgID, orgID)
	}
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&interaction).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveInteraction", operation)
	observer.ObserveDbOperationDuration("save", "interaction", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save interaction after retries",
			zap.String("lead_id", interaction.LeadID),
			zap.String("kind", interaction.Kind),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
