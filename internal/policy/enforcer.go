package policy

import (
	"context"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

// Enforcer: точка принятия решения для хоста. Локально это Evaluator,
// удаленно это gRPC-вызов в шлюз (connectors.GRPCValidator).
type Enforcer interface {
	Authorize(ctx context.Context, mandates []domain.Mandate, action domain.ProposedAction) (domain.ValidationResult, error)
}

// LocalEnforcer выполняет проверку в процессе, без сети.
type LocalEnforcer struct {
	eval *Evaluator
}

func NewLocalEnforcer(eval *Evaluator) *LocalEnforcer {
	if eval == nil {
		eval = NewEvaluator()
	}
	return &LocalEnforcer{eval: eval}
}

func (e *LocalEnforcer) Authorize(_ context.Context, mandates []domain.Mandate, action domain.ProposedAction) (domain.ValidationResult, error) {
	return e.eval.Evaluate(mandates, action), nil
}
