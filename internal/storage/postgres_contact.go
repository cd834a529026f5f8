package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
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

// --- Contact Repository Methods ---

// SaveContact creates a contact record.
func (r *PostgresRepo) SaveContact(ctx context.Context, contact model.Contact) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if orgID != contact.OrgID {
		return fmt.Errorf("%w: contact OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, contact.OrgID, orgID)
	}

	operation := func() error {
		if createErr := r.db.WithContext(ctx).Create(&contact).Error; createErr != nil {
			return checkConstraintViolation(createErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact", operation)
	observer.ObserveDbOperationDuration("save", "contact", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateContact updates an existing contact record under a row lock.
//
// Canonical-phone invariant: an established phone number is never replaced by
// an empty one. The incoming contact's empty PhoneE164 is dropped before the
// update so partial provider data cannot erase the callback number.
func (r *PostgresRepo) UpdateContact(ctx context.Context, contact model.Contact) error {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	if orgID != contact.OrgID {
		return fmt.Errorf("%w: contact OrgID %s does not match tenant ID %s", apperrors.ErrBadRequest, contact.OrgID, orgID)
	}
	contact.UpdatedAt = utils.Now()

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

		var existing model.Contact
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND org_id = ?", contact.ID, orgID).
			First(&existing)
		if findErr := result.Error; findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				txErr = fmt.Errorf("%w: contact not found for update (ID: %s, OrgID: %s): %w", apperrors.ErrNotFound, contact.ID, orgID, findErr)
				return backoff.Permanent(txErr)
			}
			txErr = fmt.Errorf("%w: failed to lock contact row for update: %w", apperrors.ErrDatabase, findErr)
			return txErr
		}

		if contact.PhoneE164 == "" {
			contact.PhoneE164 = existing.PhoneE164
		}

		if updateErr := tx.Model(&existing).Updates(contact).Error; updateErr != nil {
			txErr = checkConstraintViolation(updateErr)
			return txErr
		}

		if commitErr := tx.Commit().Error; commitErr != nil {
			txErr = fmt.Errorf("%w: failed to commit update transaction: %w", apperrors.ErrDatabase, commitErr)
			return txErr
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateContact Commit", operation)
	observer.ObserveDbOperationDuration("update", "contact", orgID, time.Since(startTime), commitErr)
	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update contact after retries", zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindContactByID finds a contact by its ID.
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		result := r.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact_id %s: %w", apperrors.ErrNotFound, id, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find_by_id", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		loggerCtx.Error("Failed to find contact by ID after retries",
			zap.String("contact_id", id),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// FindContactByPhone finds a contact by its normalized phone number.
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, phoneE164 string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		if phoneE164 == "" {
			return backoff.Permanent(fmt.Errorf("%w: phone cannot be empty for FindContactByPhone", apperrors.ErrBadRequest))
		}
		result := r.db.WithContext(ctx).Where("phone_e164 = ? AND org_id = ?", phoneE164, orgID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: phone %s: %w", apperrors.ErrNotFound, phoneE164, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByPhone", operation)
	observer.ObserveDbOperationDuration("find_by_phone", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		if errors.Is(findErr, apperrors.ErrBadRequest) {
			return nil, findErr
		}
		loggerCtx.Error("Failed to find contact by phone after retries",
			zap.String("phone", phoneE164),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}

// FindContactByEmail finds a contact by email, the fallback identity key when
// a caller has no usable phone number.
func (r *PostgresRepo) FindContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	orgID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get org ID from context: %w", apperrors.ErrUnauthorized, err)
	}
	loggerCtx := logger.FromContext(ctx)

	var contact model.Contact
	operation := func() error {
		if email == "" {
			return backoff.Permanent(fmt.Errorf("%w: email cannot be empty for FindContactByEmail", apperrors.ErrBadRequest))
		}
		result := r.db.WithContext(ctx).Where("email = ? AND org_id = ?", email, orgID).First(&contact)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: email %s: %w", apperrors.ErrNotFound, email, result.Error)
			}
			return fmt.Errorf("%w: query failed: %w", apperrors.ErrDatabase, result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	findErr := retryableOperation(ctx, readPolicy, "FindContactByEmail", operation)
	observer.ObserveDbOperationDuration("find_by_email", "contact", orgID, time.Since(startTime), findErr)

	if findErr != nil {
		if errors.Is(findErr, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		if errors.Is(findErr, apperrors.ErrBadRequest) {
			return nil, findErr
		}
		loggerCtx.Error("Failed to find contact by email after retries",
			zap.String("email", email),
			zap.String("org_id", orgID),
			zap.Error(findErr))
		return nil, findErr
	}
	return &contact, nil
}
