package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

var mandateColumns = []string{"id", "action", "granted_by", "valid_from", "valid_until",
	"id", "type", "value", "unit", "operator"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestMandateRepo_GetAllActiveMandatesGroupsRows(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(48 * time.Hour)

	rows := sqlmock.NewRows(mandateColumns).
		AddRow("m1", "Purchase", "alice", now, until, "c1", "MaxPrice", "150", "USD", "LessThanOrEqual").
		AddRow("m1", "Purchase", "alice", now, until, "c2", "MaxQuantity", "100", "Items", "LessThanOrEqual").
		AddRow("m2", "Purchase", "bob", now, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery("FROM mandates m\\s+LEFT JOIN mandate_conditions").
		WithArgs(now).
		WillReturnRows(rows)

	got, err := NewMandateRepo(db).GetAllActiveMandates(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	m1 := got[0]
	assert.Equal(t, "m1", m1.ID)
	require.NotNil(t, m1.ValidUntil)
	assert.True(t, m1.ValidUntil.Equal(until))
	require.Len(t, m1.Conditions, 2)
	assert.Equal(t, domain.ConditionMaxPrice, m1.Conditions[0].Type)
	assert.True(t, m1.Conditions[0].Value.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, domain.UnitItems, m1.Conditions[1].Unit)

	m2 := got[1]
	assert.Nil(t, m2.ValidUntil)
	assert.NotNil(t, m2.Conditions)
	assert.Empty(t, m2.Conditions)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_GetMandateNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("WHERE m.id = \\$1").WithArgs("missing").WillReturnRows(sqlmock.NewRows(mandateColumns))

	_, err := NewMandateRepo(db).GetMandate(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrMandateNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_CreateMandateInTx(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	m := &domain.Mandate{
		ID: "m1", Action: "Purchase", GrantedBy: "alice", ValidFrom: now,
		Conditions: []domain.Condition{
			{ID: "c1", Type: domain.ConditionMaxPrice, Value: decimal.NewFromInt(150), Unit: domain.UnitUSD, Operator: domain.OpLessThanOrEqual},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mandates").
		WithArgs("m1", "Purchase", "alice", now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO mandate_conditions").
		WithArgs("c1", "m1", 0, "MaxPrice", sqlmock.AnyArg(), "USD", "LessThanOrEqual").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewMandateRepo(db).CreateMandate(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_CreateMandateRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO mandates").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := NewMandateRepo(db).CreateMandate(context.Background(), &domain.Mandate{ID: "m1"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_RevokeMandate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMandateRepo(db)

	mock.ExpectExec("UPDATE mandates SET revoked_at").WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RevokeMandate(context.Background(), "m1"))

	// Уже отозван или не существует
	mock.ExpectExec("UPDATE mandates SET revoked_at").WithArgs("m1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.RevokeMandate(context.Background(), "m1"), domain.ErrMandateNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMandateRepo_ListRevokedIDs(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id FROM mandates WHERE revoked_at IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1").AddRow("m2"))

	ids, err := NewMandateRepo(db).ListRevokedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}
