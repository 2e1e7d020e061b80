package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "mandate"
)

// Ключи для Sets (состояние)
const (
	RedisKeyRevokedMandates = RedisNamespace + ":mandates:revoked_set"
	RedisKeyLockRevoked     = RedisNamespace + ":lock:warmup:revoked"
	RedisKeyApprovalIndex   = RedisNamespace + ":approvals:index"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanApprovalDecisions: канал для трансляции решений оператора (HITL).
	RedisChanApprovalDecisions = RedisNamespace + ":approvals"
	RedisChanRevocation        = RedisNamespace + ":mandates:revocation-signal"
	RedisChanMandateUpdate     = RedisNamespace + ":mandates:update"
)

// ApprovalKey ключ с JSON-телом запроса на апрув
func ApprovalKey(id string) string {
	return fmt.Sprintf("%s:approvals:request:%s", RedisNamespace, id)
}
