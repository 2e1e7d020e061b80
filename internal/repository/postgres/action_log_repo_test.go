package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agent-mandate/internal/audit"
)

func TestActionLogRepo_WriteBatchSingleInsert(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Now().UTC()

	logs := []audit.ActionLog{
		{ID: "1", TraceID: "t1", AgentID: "a", Action: "Purchase", Source: audit.SourceGateway,
			Price: decimal.NewFromInt(10), Quantity: 1, WasSuccessful: true, Reason: "ok", Timestamp: ts},
		{ID: "2", TraceID: "t2", AgentID: "a", MandateID: "m1", Action: "Purchase", Source: audit.SourceGateway,
			Price: decimal.NewFromInt(500), Quantity: 1, Reason: "price_exceeded", Timestamp: ts},
	}

	// 2 записи x 12 колонок, один INSERT с $1..$24
	mock.ExpectExec("INSERT INTO action_logs .* VALUES \\(\\$1, .*\\$12\\),\\(\\$13, .*\\$24\\)").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, NewActionLogRepo(db).WriteBatch(context.Background(), logs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionLogRepo_WriteBatchEmptyIsNoop(t *testing.T) {
	db, mock := newMock(t)
	require.NoError(t, NewActionLogRepo(db).WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionLogRepo_WriteBatchError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO action_logs").WillReturnError(errors.New("connection reset"))

	err := NewActionLogRepo(db).WriteBatch(context.Background(), []audit.ActionLog{{ID: "1"}})
	assert.ErrorContains(t, err, "failed to write action logs")
}

func TestActionLogRepo_FetchLogs(t *testing.T) {
	db, mock := newMock(t)
	ts := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "trace_id", "agent_id", "mandate_id", "action", "source", "price",
		"quantity", "was_successful", "reason", "remarks", "timestamp"}).
		AddRow("1", "t1", "agent-1", nil, "Purchase", "gateway", "12.50", int64(2), true, "ok", "Mandate conditions validated.", ts)

	mock.ExpectQuery("FROM action_logs").WithArgs("agent-1", "", defaultActionLogLimit).WillReturnRows(rows)

	logs, err := NewActionLogRepo(db).FetchLogs(context.Background(), ActionLogFilter{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "", logs[0].MandateID)
	assert.True(t, logs[0].Price.Equal(decimal.RequireFromString("12.5")))
	assert.True(t, logs[0].WasSuccessful)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActionLogRepo_GetDecisionStats(t *testing.T) {
	db, mock := newMock(t)
	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\), COUNT\\(\\*\\) FILTER").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"total", "denied"}).AddRow(int64(10), int64(4)))
	mock.ExpectQuery("GROUP BY reason").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"reason", "count"}).AddRow("price_exceeded", int64(3)).AddRow("revoked", int64(1)))
	mock.ExpectQuery("date_trunc").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "count"}).AddRow("2026-03-01T12:00", int64(10)))

	stats, err := NewActionLogRepo(db).GetDecisionStats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalDecisions)
	assert.InDelta(t, 0.4, stats.DenyRatio, 1e-9)
	assert.Equal(t, int64(3), stats.TopReasons["price_exceeded"])
	require.Len(t, stats.HourlyActivity, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
