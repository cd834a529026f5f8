package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/caselane/api/caselane-intake-processor/internal/apperrors"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/model"
	"gitlab.com/caselane/api/caselane-intake-processor/internal/tenant"
)

func contactTestContext() context.Context {
	return tenant.WithOrgID(context.Background(), testOrgID)
}

func TestSaveContact_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()

	contact := model.Contact{
		ID:        "contact-1",
		OrgID:     testOrgID,
		Name:      "Jane Doe",
		PhoneE164: "+18505551234",
		Email:     "jane@example.com",
	}

	insertSQL := `INSERT INTO "contacts" ("id","org_id","name","phone_e164","email","created_at","updated_at") VALUES ($1,$2,$3,$4,$5,$6,$7)`
	mock.ExpectExec(insertSQL).
		WithArgs(contact.ID, contact.OrgID, contact.Name, contact.PhoneE164, contact.Email, AnyTime{}, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveContact(ctx, contact)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveContact_TenantMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()

	err := repo.SaveContact(ctx, model.Contact{ID: "contact-2", OrgID: "other-org"})

	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContact_KeepsCanonicalPhone(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()
	now := time.Now()

	// Incoming update has no phone; the stored number must survive.
	contact := model.Contact{
		ID:    "contact-3",
		OrgID: testOrgID,
		Name:  "Jane D.",
	}

	existingCols := []string{"id", "org_id", "name", "phone_e164", "email", "created_at", "updated_at"}
	existingRows := sqlmock.NewRows(existingCols).
		AddRow(contact.ID, testOrgID, "Jane", "+18505551234", "", now.Add(-time.Hour), now.Add(-time.Minute))

	mock.ExpectBegin()
	selectSQL := `SELECT * FROM "contacts" WHERE id = $1 AND org_id = $2 ORDER BY "contacts"."id" LIMIT $3 FOR UPDATE`
	mock.ExpectQuery(selectSQL).WithArgs(contact.ID, testOrgID, 1).WillReturnRows(existingRows)

	updateSQL := `UPDATE "contacts" SET "id"=$1,"org_id"=$2,"name"=$3,"phone_e164"=$4,"updated_at"=$5 WHERE "id" = $6`
	mock.ExpectExec(updateSQL).
		WithArgs(contact.ID, testOrgID, contact.Name, "+18505551234", AnyTime{}, contact.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateContact(ctx, contact)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateContact_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()

	contact := model.Contact{ID: "contact-missing", OrgID: testOrgID, Name: "Nobody"}

	mock.ExpectBegin()
	selectSQL := `SELECT * FROM "contacts" WHERE id = $1 AND org_id = $2 ORDER BY "contacts"."id" LIMIT $3 FOR UPDATE`
	mock.ExpectQuery(selectSQL).WithArgs(contact.ID, testOrgID, 1).WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectRollback()

	err := repo.UpdateContact(ctx, contact)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindContactByPhone_Found(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()

	selectSQL := `SELECT * FROM "contacts" WHERE phone_e164 = $1 AND org_id = $2 ORDER BY "contacts"."id" LIMIT $3`
	rows := sqlmock.NewRows([]string{"id", "org_id", "name", "phone_e164"}).
		AddRow("contact-4", testOrgID, "Jane", "+18505551234")
	mock.ExpectQuery(selectSQL).WithArgs("+18505551234", testOrgID, 1).WillReturnRows(rows)

	contact, err := repo.FindContactByPhone(ctx, "+18505551234")

	assert.NoError(t, err)
	assert.Equal(t, "contact-4", contact.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindContactByPhone_EmptyPhoneRejected(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contactTestContext()

	contact, err := repo.FindContactByPhone(ctx, "")

	assert.Nil(t, contact)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindContactByID_MissingTenant(t *testing.T) {
	repo, _ := newMockRepo(t)

	contact, err := repo.FindContactByID(context.Background(), "contact-5")

	assert.Nil(t, contact)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
