package policy

/*
Файл evaluator.go: ядро проверки мандатов (Policy Decision Point).

Вычислитель, чистая функция: на входе снимок мандатов и предлагаемое действие,
на выходе ровно один ValidationResult. Никакого I/O, логов и скрытого состояния,
поэтому его можно вызывать из любого числа горутин без синхронизации.
Логирование, аудит и метрики остаются обязанностью хоста (gateway, agent).
*/

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xela07ax/agent-mandate/internal/domain"
)

// EmptyMandatePolicy определяет вердикт, когда мандатов нет вообще.
// Умолчаний два: библиотечный вычислитель (NewEvaluator, нулевое значение) разрешает,
// а значение из конфига хоста без явного "allow" запрещает.
type EmptyMandatePolicy int

const (
	// EmptyAllow: "нет ограничений, действие разрешено" (поведение исходного сэмпла).
	EmptyAllow EmptyMandatePolicy = iota
	// EmptyDeny: Zero Trust: без мандата действие запрещено.
	EmptyDeny
)

// ParseEmptyMandatePolicy разбирает значение из конфига ("allow" | "deny").
// Пустая строка дает EmptyDeny: хост без настройки работает по Zero Trust.
func ParseEmptyMandatePolicy(s string) (EmptyMandatePolicy, error) {
	switch s {
	case "allow":
		return EmptyAllow, nil
	case "deny", "":
		return EmptyDeny, nil
	default:
		return EmptyDeny, fmt.Errorf("unknown empty mandate policy %q", s)
	}
}

func (p EmptyMandatePolicy) String() string {
	if p == EmptyAllow {
		return "allow"
	}
	return "deny"
}

const (
	msgValidated        = "Mandate conditions validated."
	msgNoMandatesDenied = "No mandate authorizes this action."
)

// Evaluator проверяет предлагаемое действие против набора мандатов.
// Нулевое значение пригодно к работе и ведет себя разрешительно на пустом наборе.
type Evaluator struct {
	empty EmptyMandatePolicy
}

type Option func(*Evaluator)

// WithEmptyMandates явно задает вердикт для пустого набора мандатов.
func WithEmptyMandates(p EmptyMandatePolicy) Option {
	return func(e *Evaluator) { e.empty = p }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{empty: EmptyAllow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEvaluator = NewEvaluator()

// Evaluate: вычислитель с политикой по умолчанию (EmptyAllow).
func Evaluate(mandates []domain.Mandate, action domain.ProposedAction) domain.ValidationResult {
	return defaultEvaluator.Evaluate(mandates, action)
}

// EmptyPolicy возвращает настроенный вердикт для пустого набора.
func (e *Evaluator) EmptyPolicy() EmptyMandatePolicy {
	return e.empty
}

// Evaluate обходит мандаты и их условия в заданном порядке.
// Первое нарушенное условие определяет отказ (short-circuit), остальные не проверяются.
// nil-срез трактуется как пустой набор.
func (e *Evaluator) Evaluate(mandates []domain.Mandate, action domain.ProposedAction) domain.ValidationResult {
	if len(mandates) == 0 {
		if e.empty == EmptyDeny {
			return domain.ValidationResult{Valid: false, Message: msgNoMandatesDenied, Reason: domain.ReasonNoMandates}
		}
		return success()
	}

	quantity := decimal.NewFromInt(action.Quantity)

	for _, m := range mandates {
		for _, c := range m.Conditions {
			if c.Operator != domain.OpLessThanOrEqual {
				continue // Остальные операторы пока инертны
			}

			switch c.Type {
			case domain.ConditionMaxPrice:
				// Конвертации валют нет: если валюта действия известна и отличается, отказ
				if action.Currency.IsCurrency() && c.Unit.IsCurrency() && action.Currency != c.Unit {
					return violation(m, c, domain.ReasonCurrencyMismatch,
						fmt.Sprintf("Price currency %s does not match the mandate currency %s.", action.Currency, c.Unit))
				}
				if action.Price.GreaterThan(c.Value) {
					return violation(m, c, domain.ReasonPriceExceeded,
						fmt.Sprintf("Price exceeds the maximum allowed price of %s.", c.Value.String()))
				}

			case domain.ConditionMaxQuantity:
				if quantity.GreaterThan(c.Value) {
					return violation(m, c, domain.ReasonQuantityExceeded,
						fmt.Sprintf("Quantity exceeds the maximum allowed quantity of %s.", c.Value.String()))
				}
			}
		}
	}

	return success()
}

func success() domain.ValidationResult {
	return domain.ValidationResult{Valid: true, Message: msgValidated, Reason: domain.ReasonOK}
}

func violation(m domain.Mandate, c domain.Condition, reason domain.DecisionReason, msg string) domain.ValidationResult {
	return domain.ValidationResult{
		Valid:       false,
		Message:     msg,
		Reason:      reason,
		MandateID:   m.ID,
		ConditionID: c.ID,
	}
}
