package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
)

func callTestContext() context.Context {
	return tenant.WithOrgID(context.Background(), testOrgID)
}

const selectCallForUpdateSQL = `SELECT * FROM "calls" WHERE provider = $1 AND provider_call_id = $2 ORDER BY "calls"."id" LIMIT $3 FOR UPDATE`

var callColumns = []string{"id", "org_id", "lead_id", "provider", "provider_call_id", "direction", "from_e164", "to_e164", "status", "started_at", "ended_at", "duration_seconds", "summary"}

func TestUpsertCall_CreatesNewCall(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	call := model.Call{
		ID:             "call-1",
		OrgID:          testOrgID,
		Provider:       model.ProviderTwilio,
		ProviderCallID: "CA123",
		Direction:      "inbound",
		FromE164:       "+18505551234",
		ToE164:         "+18665550100",
		Status:         model.CallStatusInProgress,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(selectCallForUpdateSQL).
		WithArgs(model.ProviderTwilio, "CA123", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	insertSQL := `INSERT INTO "calls" ("id","org_id","lead_id","provider","provider_call_id","direction","from_e164","to_e164","status","started_at","ended_at","duration_seconds","summary","created_at","updated_at") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	mock.ExpectExec(insertSQL).
		WithArgs("call-1", testOrgID, "", model.ProviderTwilio, "CA123", "inbound",
			"+18505551234", "+18665550100", model.CallStatusInProgress,
			AnyTime{}, nil, 0, "", AnyTime{}, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.UpsertCall(ctx, call)

	require.NoError(t, err)
	assert.Equal(t, "call-1", saved.ID)
	assert.False(t, saved.StartedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCall_FillsForwardOnUpdate(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()
	now := time.Now()
	endedAt := now.Add(-time.Minute)

	existing := sqlmock.NewRows(callColumns).
		AddRow("call-2", testOrgID, "", model.ProviderVapi, "vapi-1", "inbound",
			"+18505551234", "+18665550100", model.CallStatusInProgress, now.Add(-time.Hour), nil, 0, "")

	mock.ExpectBegin()
	mock.ExpectQuery(selectCallForUpdateSQL).
		WithArgs(model.ProviderVapi, "vapi-1", 1).
		WillReturnRows(existing)
	updateSQL := `UPDATE "calls" SET "duration_seconds"=$1,"ended_at"=$2,"status"=$3,"summary"=$4,"updated_at"=$5 WHERE "id" = $6`
	mock.ExpectExec(updateSQL).
		WithArgs(312, endedAt, model.CallStatusCompleted, "Caller described a collision", AnyTime{}, "call-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.UpsertCall(ctx, model.Call{
		OrgID:           testOrgID,
		Provider:        model.ProviderVapi,
		ProviderCallID:  "vapi-1",
		Status:          model.CallStatusCompleted,
		Summary:         "Caller described a collision",
		DurationSeconds: 312,
		EndedAt:         &endedAt,
	})

	require.NoError(t, err)
	assert.Equal(t, "call-2", saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCall_CompletedNeverRevertsToInProgress(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()
	now := time.Now()

	existing := sqlmock.NewRows(callColumns).
		AddRow("call-3", testOrgID, "", model.ProviderTwilio, "CA456", "inbound",
			"+18505551234", "+18665550100", model.CallStatusCompleted, now.Add(-time.Hour), now.Add(-time.Minute), 120, "")

	mock.ExpectBegin()
	mock.ExpectQuery(selectCallForUpdateSQL).
		WithArgs(model.ProviderTwilio, "CA456", 1).
		WillReturnRows(existing)
	// A late in-progress callback leaves the terminal status untouched.
	updateSQL := `UPDATE "calls" SET "updated_at"=$1 WHERE "id" = $2`
	mock.ExpectExec(updateSQL).
		WithArgs(AnyTime{}, "call-3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.UpsertCall(ctx, model.Call{
		OrgID:          testOrgID,
		Provider:       model.ProviderTwilio,
		ProviderCallID: "CA456",
		Status:         model.CallStatusInProgress,
	})

	require.NoError(t, err)
	assert.Equal(t, model.CallStatusCompleted, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCall_TenantMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	_, err := repo.UpsertCall(ctx, model.Call{OrgID: "other-org", Provider: model.ProviderTwilio, ProviderCallID: "CA1"})

	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountCallsByLead(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	countSQL := `SELECT count(*) FROM "calls" WHERE lead_id = $1 AND org_id = $2`
	mock.ExpectQuery(countSQL).
		WithArgs("lead-1", testOrgID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountCallsByLead(ctx, "lead-1")

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachCallToLead_OnlyLinksUnlinkedCalls(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	updateSQL := `UPDATE "calls" SET "lead_id"=$1,"updated_at"=$2 WHERE id = $3 AND org_id = $4 AND (lead_id IS NULL OR lead_id = '')`
	mock.ExpectExec(updateSQL).
		WithArgs("lead-1", AnyTime{}, "call-4", testOrgID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AttachCallToLead(ctx, "call-4", "lead-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInteraction(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	interaction := model.Interaction{
		ID:       "int-1",
		OrgID:    testOrgID,
		LeadID:   "lead-1",
		CallID:   "call-1",
		Channel:  model.SourceChannelVoice,
		Kind:     model.InteractionKindWarmTransfer,
		Status:   model.InteractionStatusPending,
		Notes:    "caller in distress",
		Metadata: model.RandomJSONBMap(map[string]interface{}{"urgency": "urgent"}),
	}

	insertSQL := `INSERT INTO "interactions" ("id","org_id","lead_id","call_id","channel","kind","status","notes","metadata","created_at") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	mock.ExpectExec(insertSQL).
		WithArgs("int-1", testOrgID, "lead-1", "call-1", model.SourceChannelVoice,
			model.InteractionKindWarmTransfer, model.InteractionStatusPending,
			"caller in distress", AnyJSON{}, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveInteraction(ctx, interaction)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveInteraction_TenantMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := callTestContext()

	err := repo.SaveInteraction(ctx, model.Interaction{OrgID: "other-org", LeadID: "lead-1", Kind: model.InteractionKindNote})

	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}
