package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Источники записей журнала
const (
	SourceGateway = "gateway"
	SourceAgent   = "agent"
)

// ActionLog: append-only запись о каждом решении по мандатам.
// Вычислитель ее не создает: хост пишет ее после каждого Evaluate.
type ActionLog struct {
	ID        string `json:"id"`       // UUID записи
	TraceID   string `json:"trace_id"` // Сквозной ID запроса
	AgentID   string `json:"agent_id"` // Кто действовал
	MandateID string `json:"mandate_id,omitempty"`
	Action    string `json:"action"` // e.g. "Purchase"
	Source    string `json:"source"` // gateway | agent

	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`

	// Результат
	WasSuccessful bool      `json:"was_successful"`
	Reason        string    `json:"reason"`  // ok, price_exceeded, malformed_input ...
	Remarks       string    `json:"remarks"` // Сообщение для человека
	Timestamp     time.Time `json:"timestamp"`
}
