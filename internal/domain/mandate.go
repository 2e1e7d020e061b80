package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ActionPurchase каноничное имя действия для покупки. Сравнение имен действий строгое (case-sensitive).
const ActionPurchase = "Purchase"

// ConditionType: что именно ограничивает условие. Перечисление расширяемое:
// неизвестные значения сохраняются при (де)сериализации и игнорируются вычислителем.
type ConditionType string

const (
	ConditionMaxPrice    ConditionType = "MaxPrice"
	ConditionMaxQuantity ConditionType = "MaxQuantity"
)

// ConditionUnit: валюта или единица счета.
type ConditionUnit string

const (
	UnitUSD   ConditionUnit = "USD"
	UnitEUR   ConditionUnit = "EUR"
	UnitItems ConditionUnit = "Items"
)

// IsCurrency отличает денежные единицы от штучных.
func (u ConditionUnit) IsCurrency() bool {
	return u != "" && u != UnitItems
}

// ConditionOperator: отношение сравнения.
type ConditionOperator string

const (
	OpLessThanOrEqual    ConditionOperator = "LessThanOrEqual"
	OpLessThan           ConditionOperator = "LessThan"
	OpEquals             ConditionOperator = "Equals"
	OpGreaterThan        ConditionOperator = "GreaterThan"
	OpGreaterThanOrEqual ConditionOperator = "GreaterThanOrEqual"
)

// Mandate: делегированное, ограниченное по времени разрешение на действие.
// Выпускается внешним центром (Console) и передается вычислителю как неизменяемый снимок.
type Mandate struct {
	ID         string      `json:"mandateId"`
	Action     string      `json:"action"`          // e.g. "Purchase"
	GrantedBy  string      `json:"grantedByUserId"` // Кто делегировал полномочия
	ValidFrom  time.Time   `json:"validFrom"`
	ValidUntil *time.Time  `json:"validUntil,omitempty"` // nil = бессрочно
	Conditions []Condition `json:"conditions"`
}

// Condition: одно ограничение (тип, значение, единица, оператор).
type Condition struct {
	ID       string            `json:"conditionId"`
	Type     ConditionType     `json:"type"`
	Value    decimal.Decimal   `json:"value"` // Только десятичная арифметика: значение гейтит деньги
	Unit     ConditionUnit     `json:"unit"`
	Operator ConditionOperator `json:"operator"`
}

// IsActive проверяет окно действия мандата. Граница ValidFrom включительно, ValidUntil, исключительно.
func (m *Mandate) IsActive(now time.Time) bool {
	if now.Before(m.ValidFrom) {
		return false
	}
	if m.ValidUntil != nil && !now.Before(*m.ValidUntil) {
		return false
	}
	return true
}

// Authorizes: точное совпадение имени действия.
func (m *Mandate) Authorizes(action string) bool {
	return m.Action == action
}

// Validate проверяет структурную целостность мандата перед выпуском.
func (m *Mandate) Validate() error {
	if m.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidMandate)
	}
	if m.GrantedBy == "" {
		return fmt.Errorf("%w: grantor is required", ErrInvalidMandate)
	}
	if m.ValidUntil != nil && !m.ValidUntil.After(m.ValidFrom) {
		return fmt.Errorf("%w: validUntil must be after validFrom", ErrInvalidMandate)
	}
	for i, c := range m.Conditions {
		if c.Type == "" || c.Operator == "" {
			return fmt.Errorf("%w: condition #%d has no type or operator", ErrInvalidMandate, i)
		}
	}
	return nil
}
