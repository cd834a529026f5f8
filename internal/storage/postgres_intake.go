package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Intake Repository Methods ---

// UpsertIntakeAnswers merges new answers into the lead's intake record,
// creating it if this is the first save. Merging happens under a row lock so
// concurrent saves from overlapping tool calls cannot drop each other's keys.
// Answers accumulate monotonically: existing keys are overwritten by new
// values, but absent keys are never removed.
func (r *PostgresRepo) UpsertIntakeAnswers(ctx context.Context, leadID string, answers map[string]interface{}) (*model.Intake, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	var saved model.Intake
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

		var existing model.Intake
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lead_id = ? AND org_id = ?", leadID, orgID).
			First(&existing)
		findErr := result.Error

		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				intake := model.Intake{
					ID:               uuid.New().String(),
					OrgID:            orgID,
					LeadID:           leadID,
					Answers:          datatypes.JSON(utils.MustMarshalJSON(answers)),
					CompletionStatus: model.IntakeStatusPartial,
				}
				if createErr := tx.Create(&intake).Error; createErr != nil {
					txErr = checkConstraintViolation(createErr)
					return txErr
				}
				saved = intake
			} else {
				txErr = fmt.Errorf("%w: failed to lock intake row: %w", apperrors.ErrDatabase, findErr)
				return txErr
			}
		} else {
			current, decodeErr := existing.AnswersMap()
			if decodeErr != nil {
				txErr = backoff.Permanent(fmt.Errorf("%w: %w", apperrors.ErrDatabase, decodeErr))
				return txErr
			}
			merged := utils.MergeJSONMaps(current, answers)
			updates := map[string]interface{}{
				"answers":    datatypes.JSON(utils.MustMarshalJSON(merged)),
				"updated_at": utils.Now(),
			}
			if updateErr := tx.Model(&existing).Updates(updates).Error; updateErr != nil {
				txErr = checkConstraintViolation(updateErr)
				return txErr
			}
			existing.Answers = datatypes.JSON(utils.MustMarshalJSON(merged))
			saved = existing
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit intake transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpsertIntakeAnswers Commit", operation)
	observer.ObserveDbOperationDuration("upsert_answers", "intake", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to upsert intake answers after retries",
			zap.String("lead_id", leadID),
			zap.Error(commitErr))
		return nil, commitErr
	}
	return &saved, nil
}

// MarkIntakeComplete flips the lead's intake to complete. Completing an
// already complete intake is a no-op, and a missing intake row is created
// empty-but-complete so an end_call arriving before any answers still leaves
// a consistent record.
func (r *PostgresRepo) MarkIntakeComplete(ctx context.Context, leadID string) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Intake{}).
			Where("lead_id = ? AND org_id = ?", leadID, orgID).
			Updates(map[string]interface{}{
				"completion_status": model.IntakeStatusComplete,
				"updated_at":        utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			intake := model.Intake{
				ID:               uuid.New().String(),
				OrgID:            orgID,
				LeadID:           leadID,
				CompletionStatus: model.IntakeStatusComplete,
			}
			if createErr := r.db.WithContext(ctx).Create(&intake).Error; createErr != nil {
				return checkConstraintViolation(createErr)
			}
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "MarkIntakeComplete", operation)
	observer.ObserveDbOperationDuration("mark_complete", "intake", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		// A duplicate on create means a concurrent writer made the row; the
		// update on their side or a later retry settles the status.
		if errors.Is(commitErr, apperrors.ErrDuplicate) {
			return nil
		}
		logger.FromContext(ctx).Error("Failed to mark intake complete after retries",
			zap.String("lead_id", leadID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindIntakeByLeadID finds the intake record for a lead.
func (r *PostgresRepo) FindIntakeByLeadID(ctx context.Context, leadID string) (*model.Intake, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var intake model.Intake
	operation := func() error {
		result := r.db.WithContext(ctx).Where("lead_id = ? AND org_id = ?", leadID, orgID).First(&intake)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: intake for lead %s: %w", apperrors.ErrNotFound, leadID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindIntakeByLeadID", operation)
	observer.ObserveDbOperationDuration("find_by_lead_id", "intake", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find intake by lead ID after retries",
			zap.String("lead_id", leadID),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &intake, nil
}
