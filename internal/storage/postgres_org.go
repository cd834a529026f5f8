package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/observer"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/logger"
	"gitlab.com/caselane/api/caselane-intake-processor/pkg/utils"
)

// --- Organization Repository Methods ---

// FindOrgByID finds an organization by its ID.
func (r *PostgresRepo) FindOrgByID(ctx context.Context, id string) (*model.Organization, error) {
	loggerCtx := logger.FromContext(ctx)

	var org model.Organization
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&org)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: org_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOrgByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "organization", id, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find organization after retries",
			zap.String("org_id", id),
			zap.Error(findErr))
		return nil, findErr
	}
	return &org, nil
}

// FindOrgByInboundNumber routes a called number to its owning organization.
// Numbers with inbound disabled never match.
func (r *PostgresRepo) FindOrgByInboundNumber(ctx context.Context, phoneE164 string) (*model.Organization, error) {
	loggerCtx := logger.FromContext(ctx)

	var org model.Organization
	operation := func() error {
		result := r.db.WithContext(ctx).
			Joins("JOIN org_phone_numbers ON org_phone_numbers.org_id = organizations.id").
			Where("org_phone_numbers.phone_e164 = ? AND org_phone_numbers.inbound_enabled = ?", phoneE164, true).
			First(&org)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no organization owns number %s: %w", apperrors.ErrUnrouted, phoneE164, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindOrgByInboundNumber", operation)
	observer.ObserveDbOperationDuration("find_by_inbound_number", "organization", "", time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrUnrouted) {
			return nil, findErr
		}
		loggerCtx.Error("Failed to route inbound number after retries",
			zap.String("to_number", phoneE164),
			zap.Error(findErr))
		return nil, findErr
	}
	return &org, nil
}
