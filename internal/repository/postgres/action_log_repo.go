package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/domain"
)

type ActionLogRepo struct {
	db *sql.DB
}

func NewActionLogRepo(db *sql.DB) *ActionLogRepo {
	return &ActionLogRepo{db: db}
}

// Количество колонок в таблице action_logs
const actionLogFields = 12

func (r *ActionLogRepo) WriteBatch(ctx context.Context, logs []audit.ActionLog) error {
	if len(logs) == 0 {
		return nil
	}

	var placeholders strings.Builder
	vals := make([]interface{}, 0, len(logs)*actionLogFields)

	// Динамически строим запрос для пакетной вставки
	for i, l := range logs {
		if i > 0 {
			placeholders.WriteString(",")
		}
		p := i * actionLogFields
		placeholders.WriteString("(")
		for j := 1; j <= actionLogFields; j++ {
			if j > 1 {
				placeholders.WriteString(", ")
			}
			fmt.Fprintf(&placeholders, "$%d", p+j)
		}
		placeholders.WriteString(")")

		vals = append(vals,
			l.ID, l.TraceID, l.AgentID, nullable(l.MandateID), l.Action, l.Source,
			l.Price, l.Quantity, l.WasSuccessful, l.Reason, l.Remarks, l.Timestamp,
		)
	}

	query := "INSERT INTO action_logs (id, trace_id, agent_id, mandate_id, action, source, price, quantity, was_successful, reason, remarks, timestamp) VALUES " +
		placeholders.String()

	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("postgres: failed to write action logs: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ActionLogFilter: фильтры выборки журнала для консоли. Пустые поля не фильтруют.
type ActionLogFilter struct {
	AgentID   string
	MandateID string
	Limit     int
}

const defaultActionLogLimit = 100

// FetchLogs возвращает последние записи журнала (новые сверху).
func (r *ActionLogRepo) FetchLogs(ctx context.Context, f ActionLogFilter) ([]audit.ActionLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultActionLogLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trace_id, agent_id, mandate_id, action, source, price, quantity,
		       was_successful, reason, remarks, timestamp
		FROM action_logs
		WHERE ($1 = '' OR agent_id = $1) AND ($2 = '' OR mandate_id = $2)
		ORDER BY timestamp DESC
		LIMIT $3`, f.AgentID, f.MandateID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to fetch action logs: %w", err)
	}
	defer rows.Close()

	logs := make([]audit.ActionLog, 0)
	for rows.Next() {
		var (
			l         audit.ActionLog
			mandateID sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.TraceID, &l.AgentID, &mandateID, &l.Action, &l.Source, &l.Price, &l.Quantity,
			&l.WasSuccessful, &l.Reason, &l.Remarks, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan action log: %w", err)
		}
		l.MandateID = mandateID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetDecisionStats собирает сводку по решениям начиная с since.
func (r *ActionLogRepo) GetDecisionStats(ctx context.Context, since time.Time) (*domain.DecisionStats, error) {
	s := &domain.DecisionStats{TopReasons: make(map[string]int64), HourlyActivity: []domain.ActivityPoint{}}

	// 1. Общие счетчики
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT was_successful)
		FROM action_logs WHERE timestamp >= $1`, since).Scan(&s.TotalDecisions, &s.DeniedDecisions)
	if err != nil {
		return nil, fmt.Errorf("postgres: decision totals: %w", err)
	}
	if s.TotalDecisions > 0 {
		s.DenyRatio = float64(s.DeniedDecisions) / float64(s.TotalDecisions)
	}

	// 2. Причины отказов
	rows, err := r.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM action_logs
		WHERE timestamp >= $1 AND NOT was_successful
		GROUP BY reason ORDER BY COUNT(*) DESC LIMIT 10`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: decision reasons: %w", err)
	}
	for rows.Next() {
		var (
			reason string
			count  int64
		)
		if err := rows.Scan(&reason, &count); err != nil {
			rows.Close()
			return nil, err
		}
		s.TopReasons[reason] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 3. Активность по часам
	rows, err = r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('hour', timestamp), 'YYYY-MM-DD"T"HH24:00'), COUNT(*)
		FROM action_logs WHERE timestamp >= $1
		GROUP BY 1 ORDER BY 1`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: hourly activity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.ActivityPoint
		if err := rows.Scan(&p.Hour, &p.Count); err != nil {
			return nil, err
		}
		s.HourlyActivity = append(s.HourlyActivity, p)
	}
	return s, rows.Err()
}
