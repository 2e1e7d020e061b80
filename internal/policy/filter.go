package policy

import (
	"time"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

// Applicable оставляет мандаты, которые покрывают действие и действуют в момент now.
// Порядок сохраняется: от него зависит, какое нарушение будет названо первым.
func Applicable(mandates []domain.Mandate, action string, now time.Time) []domain.Mandate {
	out := make([]domain.Mandate, 0, len(mandates))
	for _, m := range mandates {
		if m.Authorizes(action) && m.IsActive(now) {
			out = append(out, m)
		}
	}
	return out
}

// Recognized сообщает, проверяет ли вычислитель эту пару тип/оператор.
func Recognized(c domain.Condition) bool {
	if c.Operator != domain.OpLessThanOrEqual {
		return false
	}
	return c.Type == domain.ConditionMaxPrice || c.Type == domain.ConditionMaxQuantity
}

// UnrecognizedConditions собирает инертные условия, чтобы хост мог их залогировать.
// На вердикт они не влияют.
func UnrecognizedConditions(mandates []domain.Mandate) []domain.Condition {
	var out []domain.Condition
	for _, m := range mandates {
		for _, c := range m.Conditions {
			if !Recognized(c) {
				out = append(out, c)
			}
		}
	}
	return out
}
