package postgres

/*
Файл mandate_repo.go: долговременное хранение выданных мандатов и их условий.
Проверка мандатов происходит в памяти (policy.Evaluator), здесь только поставка данных:
холодная загрузка кэша Console, выпуск и отзыв.
*/

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/agent-mandate/internal/domain"
)

type MandateRepo struct {
	db *sql.DB
}

func NewMandateRepo(db *sql.DB) *MandateRepo {
	return &MandateRepo{db: db}
}

const selectMandates = `
	SELECT m.id, m.action, m.granted_by, m.valid_from, m.valid_until,
	       c.id, c.type, c.value, c.unit, c.operator
	FROM mandates m
	LEFT JOIN mandate_conditions c ON c.mandate_id = m.id`

// Порядок мандатов и условий значим для вычислителя: первое нарушение определяет отказ.
const orderMandates = ` ORDER BY m.created_at, m.id, c.position`

// GetAllActiveMandates выполняет "холодную загрузку" действующих и не отозванных мандатов.
func (r *MandateRepo) GetAllActiveMandates(ctx context.Context, now time.Time) ([]domain.Mandate, error) {
	query := selectMandates + `
	WHERE m.revoked_at IS NULL AND m.valid_from <= $1 AND (m.valid_until IS NULL OR m.valid_until > $1)` + orderMandates
	return r.queryMandates(ctx, query, now)
}

// GetMandatesByGrantor: действующие мандаты, выданные конкретным пользователем.
func (r *MandateRepo) GetMandatesByGrantor(ctx context.Context, grantorID string, now time.Time) ([]domain.Mandate, error) {
	query := selectMandates + `
	WHERE m.granted_by = $1 AND m.revoked_at IS NULL AND m.valid_from <= $2 AND (m.valid_until IS NULL OR m.valid_until > $2)` + orderMandates
	return r.queryMandates(ctx, query, grantorID, now)
}

// GetMandate возвращает мандат по ID (в том числе отозванный).
func (r *MandateRepo) GetMandate(ctx context.Context, id string) (*domain.Mandate, error) {
	mandates, err := r.queryMandates(ctx, selectMandates+` WHERE m.id = $1`+orderMandates, id)
	if err != nil {
		return nil, err
	}
	if len(mandates) == 0 {
		return nil, domain.ErrMandateNotFound
	}
	return &mandates[0], nil
}

// CreateMandate сохраняет мандат и его условия в одной транзакции.
func (r *MandateRepo) CreateMandate(ctx context.Context, m *domain.Mandate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback()

	var validUntil sql.NullTime
	if m.ValidUntil != nil {
		validUntil = sql.NullTime{Time: *m.ValidUntil, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mandates (id, action, granted_by, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Action, m.GrantedBy, m.ValidFrom, validUntil)
	if err != nil {
		return fmt.Errorf("postgres: failed to create mandate: %w", err)
	}

	for i, c := range m.Conditions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mandate_conditions (id, mandate_id, position, type, value, unit, operator)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, m.ID, i, string(c.Type), c.Value, string(c.Unit), string(c.Operator))
		if err != nil {
			return fmt.Errorf("postgres: failed to create condition #%d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// RevokeMandate помечает мандат отозванным. Повторный отзыв, ErrMandateNotFound.
func (r *MandateRepo) RevokeMandate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mandates SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to revoke mandate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMandateNotFound
	}
	return nil
}

// ListRevokedIDs нужен для прогрева множества отозванных мандатов в шлюзе.
func (r *MandateRepo) ListRevokedIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM mandates WHERE revoked_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list revoked mandates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryMandates собирает плоский результат LEFT JOIN обратно в мандаты, сохраняя порядок.
func (r *MandateRepo) queryMandates(ctx context.Context, query string, args ...interface{}) ([]domain.Mandate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: failed to query mandates: %w", err)
	}
	defer rows.Close()

	var (
		result []domain.Mandate
		index  = make(map[string]int)
	)

	for rows.Next() {
		var (
			m          domain.Mandate
			validUntil sql.NullTime
			condID     sql.NullString
			condType   sql.NullString
			condValue  decimal.NullDecimal
			condUnit   sql.NullString
			condOp     sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Action, &m.GrantedBy, &m.ValidFrom, &validUntil,
			&condID, &condType, &condValue, &condUnit, &condOp); err != nil {
			return nil, fmt.Errorf("postgres: scan mandate: %w", err)
		}

		pos, seen := index[m.ID]
		if !seen {
			if validUntil.Valid {
				t := validUntil.Time
				m.ValidUntil = &t
			}
			m.Conditions = []domain.Condition{}
			result = append(result, m)
			pos = len(result) - 1
			index[m.ID] = pos
		}

		// У мандата без условий LEFT JOIN дает одну строку с NULL
		if condID.Valid {
			result[pos].Conditions = append(result[pos].Conditions, domain.Condition{
				ID:       condID.String,
				Type:     domain.ConditionType(condType.String),
				Value:    condValue.Decimal,
				Unit:     domain.ConditionUnit(condUnit.String),
				Operator: domain.ConditionOperator(condOp.String),
			})
		}
	}
	return result, rows.Err()
}
