package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

// RevokedProvider: источник истины об отозванных мандатах (PostgreSQL).
type RevokedProvider interface {
	ListRevokedIDs(ctx context.Context) ([]string, error)
}

// RevocationManager: мгновенный отзыв мандатов (Kill-Switch для полномочий).
// Мандат приходит в заголовке запроса и подписан не нами, поэтому шлюз должен сам помнить,
// какие ID отозваны: множество живет в RAM, прогревается из БД/Redis и обновляется через Pub/Sub.
type RevocationManager struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
	repo    RevokedProvider
	rdb     *redis.Client
	logger  *zap.Logger
}

func NewRevocationManager(rdb *redis.Client, repo RevokedProvider, logger *zap.Logger) *RevocationManager {
	return &RevocationManager{
		revoked: make(map[string]struct{}),
		repo:    repo,
		rdb:     rdb,
		logger:  logger.With(zap.String("mod", "revocation")),
	}
}

// Init загружает текущее состояние отзывов при старте сервиса
func (m *RevocationManager) Init(ctx context.Context) error {
	ids, err := m.repo.ListRevokedIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch revoked mandates from DB: %w", err)
	}

	return WarmupState(ctx, m.rdb, m.logger, ids, infra.RedisKeyRevokedMandates, infra.RedisKeyLockRevoked, func(items []string) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, id := range items {
			m.revoked[id] = struct{}{}
		}
	})
}

// StartListener подписывается на сигналы "mandate_id:true|false"
func (m *RevocationManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, m.rdb, m.logger, infra.RedisChanRevocation,
		func() error { return m.Init(ctx) },
		func(id string, revoked bool) {
			if revoked {
				m.MarkRevoked(id)
				m.logger.Info("mandate revoked", zap.String("mandate_id", id))
			} else {
				m.Restore(id)
			}
		},
	)
}

func (m *RevocationManager) MarkRevoked(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = struct{}{}
}

func (m *RevocationManager) Restore(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoked, id)
}

// IsRevoked: максимально быстрый метод для проверки в Hot Path
func (m *RevocationManager) IsRevoked(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[id]
	return ok
}

// FirstRevoked возвращает ID первого отозванного мандата из набора.
func (m *RevocationManager) FirstRevoked(mandates []domain.Mandate) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, md := range mandates {
		if _, ok := m.revoked[md.ID]; ok {
			return md.ID, true
		}
	}
	return "", false
}
