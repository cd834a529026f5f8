package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
)

func leadTestContext() context.Context {
	return tenant.WithOrgID(context.Background(), testOrgID)
}

func TestUpdateLead_StripsImmutableFields(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()

	// Identity fields in the update map must never reach the database.
	fields := map[string]interface{}{
		"status":     model.LeadStatusContacted,
		"id":         "evil-id",
		"org_id":     "evil-org",
		"contact_id": "evil-contact",
		"created_at": time.Now(),
	}

	updateSQL := `UPDATE "leads" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND org_id = $4`
	mock.ExpectExec(updateSQL).
		WithArgs(model.LeadStatusContacted, AnyTime{}, "lead-1", testOrgID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLead(ctx, "lead-1", fields)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLead_EmptyFieldsIsNoOp(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()

	err := repo.UpdateLead(ctx, "lead-2", map[string]interface{}{})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLead_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()

	updateSQL := `UPDATE "leads" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND org_id = $4`
	mock.ExpectExec(updateSQL).
		WithArgs(model.LeadStatusContacted, AnyTime{}, "lead-missing", testOrgID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateLead(ctx, "lead-missing", map[string]interface{}{"status": model.LeadStatusContacted})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyQualification(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()
	qualifiedAt := time.Now()

	updateSQL := `UPDATE "leads" SET "disposition"=$1,"qualified_at"=$2,"score"=$3,"status"=$4,"updated_at"=$5 WHERE id = $6 AND org_id = $7`
	mock.ExpectExec(updateSQL).
		WithArgs("accept", qualifiedAt, 82, model.LeadStatusQualified, AnyTime{}, "lead-3", testOrgID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyQualification(ctx, "lead-3", 82, "accept", model.LeadStatusQualified, qualifiedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenLeadByContact(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()

	selectSQL := `SELECT * FROM "leads" WHERE contact_id = $1 AND org_id = $2 AND status IN ($3,$4,$5) ORDER BY created_at DESC,"leads"."id" LIMIT $6`
	rows := sqlmock.NewRows([]string{"id", "org_id", "contact_id", "status"}).
		AddRow("lead-4", testOrgID, "contact-1", model.LeadStatusContacted)
	mock.ExpectQuery(selectSQL).
		WithArgs("contact-1", testOrgID, model.LeadStatusNew, model.LeadStatusContacted, model.LeadStatusQualified, 1).
		WillReturnRows(rows)

	lead, err := repo.FindOpenLeadByContact(ctx, "contact-1")

	assert.NoError(t, err)
	assert.Equal(t, "lead-4", lead.ID)
	assert.Equal(t, model.LeadStatusContacted, lead.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLead_TenantMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := leadTestContext()

	err := repo.SaveLead(ctx, *model.NewLead(&model.Lead{ID: "lead-5", OrgID: "other-org", ContactID: "contact-1"}))

	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}
