package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
)

const insertWebhookEventSQL = `INSERT INTO "webhook_events" ("provider","external_id","event_type","payload","received_at") VALUES ($1,$2,$3,$4,$5) RETURNING "id"`

func TestInsertWebhookEventOnce_FirstDelivery(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	event := model.WebhookEvent{
		Provider:   model.ProviderVapi,
		ExternalID: "call-1:tool-calls",
		EventType:  "tool-calls",
	}

	mock.ExpectQuery(insertWebhookEventSQL).
		WithArgs(event.Provider, event.ExternalID, event.EventType, AnyJSON{}, AnyTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := repo.InsertWebhookEventOnce(ctx, event)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWebhookEventOnce_DuplicateDelivery(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	event := model.WebhookEvent{
		Provider:   model.ProviderTwilio,
		ExternalID: "CA123:completed",
	}

	// The unique index loses the race; exactly one attempt, no retries.
	mock.ExpectQuery(insertWebhookEventSQL).
		WithArgs(event.Provider, event.ExternalID, event.EventType, AnyJSON{}, AnyTime{}).
		WillReturnError(duplicateKeyError("idx_webhook_events_provider_ext"))

	err := repo.InsertWebhookEventOnce(ctx, event)

	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWebhookEventOnce_MissingIdentifiers(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	err := repo.InsertWebhookEventOnce(ctx, model.WebhookEvent{Provider: model.ProviderVapi})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	err = repo.InsertWebhookEventOnce(ctx, model.WebhookEvent{ExternalID: "x"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	assert.NoError(t, mock.ExpectationsWereMet())
}
