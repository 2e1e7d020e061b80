package domain

import "github.com/shopspring/decimal"

// ProposedAction: конкретная попытка агента (например, купить Quantity штук по цене Price).
type ProposedAction struct {
	Action   string          `json:"action"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`

	// Currency пустая, цена уже выражена в единицах условия (конвертации нет).
	Currency ConditionUnit `json:"currency,omitempty"`

	// Прочие атрибуты. Вычислитель их не проверяет и на них не падает.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// DecisionReason: машиночитаемая причина вердикта (для метрик и аудита).
type DecisionReason string

const (
	ReasonOK               DecisionReason = "ok"
	ReasonNoMandates       DecisionReason = "no_mandates"
	ReasonPriceExceeded    DecisionReason = "price_exceeded"
	ReasonQuantityExceeded DecisionReason = "quantity_exceeded"
	ReasonCurrencyMismatch DecisionReason = "currency_mismatch"
)

// ValidationResult: вердикт вычислителя и человекочитаемое объяснение.
type ValidationResult struct {
	Valid   bool           `json:"isValid"`
	Message string         `json:"message"`
	Reason  DecisionReason `json:"reason"`

	// Заполняются, когда действие заблокировано конкретным условием
	MandateID   string `json:"mandateId,omitempty"`
	ConditionID string `json:"conditionId,omitempty"`
}
