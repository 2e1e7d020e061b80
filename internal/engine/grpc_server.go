package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/policy"
	mandatev1 "github.com/xela07ax/agent-mandate/pkg/api/mandate/v1"
)

// GRPCEvaluationServer: удаленная предварительная проверка мандатов.
// Идет тем же путем, что и HTTP (отзыв, фильтр, вычислитель), но без покупки.
type GRPCEvaluationServer struct {
	enforcer policy.Enforcer
	logger   *zap.Logger
}

func NewGRPCEvaluationServer(enforcer policy.Enforcer, logger *zap.Logger) *GRPCEvaluationServer {
	return &GRPCEvaluationServer{enforcer: enforcer, logger: logger.Named("grpc-eval")}
}

func (s *GRPCEvaluationServer) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	// 1. Разбор запроса: битые данные означают отказ, а не "разрешено"
	req, err := mandatev1.DecodeEvaluateRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	// 2. Тот же пайплайн, что и у HTTP
	res, err := s.enforcer.Authorize(ctx, req.Mandates, req.Action)
	if err != nil {
		if errors.Is(err, domain.ErrMandateRevoked) {
			return nil, status.Error(codes.PermissionDenied, err.Error())
		}
		s.logger.Error("evaluation failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "evaluation failed")
	}

	// 3. Ответ
	out, err := mandatev1.EncodeResult(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
