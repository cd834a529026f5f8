package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Lead Repository Methods ---

// leadOpenStatuses are the statuses under which an existing lead absorbs new
// activity instead of a second lead being created for the same contact.
var leadOpenStatuses = []string{
	model.LeadStatusNew,
	model.LeadStatusContacted,
	model.LeadStatusQualified,
}

// SaveLead creates a lead record.
func (r *PostgresRepo) SaveLead(ctx context.Context, lead model.Lead) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if orgID != lead.OrgID {
		return fmt.Errorf("%w: lead OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, lead.OrgID, orgID)
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&lead).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveLead", operation)
	observer.ObserveDbOperationDuration("save", "lead", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save lead after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateLead applies a partial field update to a lead. Identity columns are
// stripped from the field map; they are immutable once the lead exists.
func (r *PostgresRepo) UpdateLead(ctx context.Context, leadID string, fields map[string]interface{}) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if len(fields) == 0 {
		return nil
	}
	for _, immutable := range []string{"id", "org_id", "contact_id", "created_at"} {
		delete(fields, immutable)
	}
	fields["updated_at"] = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("id = ? AND org_id = ?", leadID, orgID).
			Updates(fields)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: lead_id %s", apperrors.ErrNotFound, leadID))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateLead", operation)
	observer.ObserveDbOperationDuration("update", "lead", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update lead after retries",
			zap.String("lead_id", leadID),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindLeadByID finds a lead by its ID.
func (r *PostgresRepo) FindLeadByID(ctx context.Context, id string) (*model.Lead, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var lead model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: lead_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindLeadByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "lead", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find lead by ID after retries",
			zap.String("lead_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// FindOpenLeadByContact returns the contact's most recent open lead, if any.
func (r *PostgresRepo) FindOpenLeadByContact(ctx context.Context, contactID string) (*model.Lead, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var lead model.Lead
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("contact_id = ? AND org_id = ? AND status IN ?", contactID, orgID, leadOpenStatuses).
			Order("created_at DESC").
			First(&lead)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no open lead for contact %s: %w", apperrors.ErrNotFound, contactID, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOpenLeadByContact", operation)
	observer.ObserveDbOperationDuration("find_open_by_contact", "lead", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find open lead by contact after retries",
			zap.String("contact_id", contactID),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &lead, nil
}

// ApplyQualification writes a scoring result onto the lead in one update.
func (r *PostgresRepo) ApplyQualification(ctx context.Context, leadID string, score int, disposition string, status string, qualifiedAt time.Time) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}

	fields := map[string]interface{}{
		"score":        score,
		"disposition":  disposition,
		"status":       status,
		"qualified_at": qualifiedAt,
		"updated_at":   utils.Now(),
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Lead{}).
			Where("id = ? AND org_id = ?", leadID, orgID).
			Updates(fields)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return backoff.Permanent(fmt.Errorf("%w: lead_id %s", apperrors.ErrNotFound, leadID))
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ApplyQualification", operation)
	observer.ObserveDbOperationDuration("apply_qualification", "lead", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to apply qualification after retries",
			zap.String("lead_id", leadID),
			zap.Int("score", score),
			zap.String("disposition", disposition),
			zap.Error(commitErr))
		return commitErr
	}
	return nil
}
