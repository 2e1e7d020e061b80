package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/policy"
	"go.uber.org/zap"
)

// TokenValidator: интерфейс, который реализуют и шлюз, и консоль
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.AgentClaims, error)
}

type ctxKey string

const (
	scopesKey  ctxKey = "scopes"
	subjectKey ctxKey = "subject"
)

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			subject := claims.AgentID
			if subject == "" {
				subject = claims.Subject
			}

			// Прокидываем данные в контекст
			ctx := WithScopes(r.Context(), ClaimScopes(claims))
			ctx = context.WithValue(ctx, subjectKey, subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyScope пропускает запрос, если у вызывающего есть хотя бы один из требуемых scopes.
func RequireAnyScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ScopesFromContext(r.Context()).HasAny(required...) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimScopes объединяет scopes из строки "scp" и из мапы "scopes".
func ClaimScopes(claims *domain.AgentClaims) policy.CapabilitySet {
	set := policy.ParseScopes(claims.Scope)
	for s := range policy.FromClaims(claims.Scopes) {
		set[s] = struct{}{}
	}
	return set
}

func WithScopes(ctx context.Context, scopes policy.CapabilitySet) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

// ScopesFromContext возвращает пустой набор, если middleware не отработал.
func ScopesFromContext(ctx context.Context) policy.CapabilitySet {
	if s, ok := ctx.Value(scopesKey).(policy.CapabilitySet); ok {
		return s
	}
	return policy.CapabilitySet{}
}

// SubjectFromContext: agent_id или sub из токена.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}
