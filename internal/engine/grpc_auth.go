package engine

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/xela07ax/agent-mandate/internal/infra/auth"
)

// UnaryAuthInterceptor проверяет bearer-токен в метаданных gRPC вызова
func UnaryAuthInterceptor(v auth.TokenValidator, required []string, logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// 1. Извлекаем метаданные из контекста
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		// 2. Ищем токен (в gRPC заголовки в нижнем регистре)
		tokens := md.Get("authorization")
		if len(tokens) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing access token")
		}

		claims, err := v.VerifyToken(tokens[0])
		if err != nil {
			logger.Warn("grpc auth failure", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		}

		// 3. Scopes, та же логика, что и в HTTP
		scopes := auth.ClaimScopes(claims)
		if !scopes.HasAny(required...) {
			return nil, status.Error(codes.PermissionDenied, "insufficient scope")
		}

		// 4. Обогащаем контекст и идем дальше по цепочке
		return handler(auth.WithScopes(ctx, scopes), req)
	}
}
