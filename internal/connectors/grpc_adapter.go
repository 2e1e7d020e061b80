package connectors

import (
	"context"
	"fmt"
	"time"

	mandatev1 "github.com/xela07ax/agent-mandate/pkg/api/mandate/v1"
	"google.golang.org/grpc/metadata"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

// GRPCValidator: удаленная проверка мандатов в шлюзе (реализует policy.Enforcer).
// Агент использует его, когда хочет получить вердикт той же версии вычислителя, что и у шлюза.
type GRPCValidator struct {
	client mandatev1.MandateEvaluationClient
	token  string
}

func NewGRPCValidator(client mandatev1.MandateEvaluationClient, token string) *GRPCValidator {
	return &GRPCValidator{client: client, token: token}
}

func (v *GRPCValidator) Authorize(ctx context.Context, mandates []domain.Mandate, action domain.ProposedAction) (domain.ValidationResult, error) {
	// 1. Конвертируем запрос в Protobuf Struct. nil-срез уходит как [], а не null
	if mandates == nil {
		mandates = []domain.Mandate{}
	}
	req := mandatev1.EvaluateRequest{Mandates: mandates, Action: action}
	in, err := req.ToStruct()
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("failed to encode evaluate request: %w", err)
	}

	// 2. Защитный таймаут на уровне вызова
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if v.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+v.token)
	}

	// 3. Вызов шлюза
	out, err := v.client.Evaluate(ctx, in)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("mandate evaluation call failed: %w", err)
	}

	return mandatev1.DecodeResult(out)
}
