package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// AgentClaims: claims токена, с которым агент (или оператор Console) ходит в API.
// Scope: строка через пробел, как у OIDC-провайдеров ("purchase.write purchase.read").
// Scopes: тот же набор мапой ("purchase.write": true), учитываются оба.
type AgentClaims struct {
	Scope   string          `json:"scp"`
	Scopes  map[string]bool `json:"scopes,omitempty"`
	AgentID string          `json:"agent_id,omitempty"`
	jwt.RegisteredClaims
}
