package policy

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
	"go.uber.org/zap"
)

type MandateRepository interface {
	GetAllActiveMandates(ctx context.Context, now time.Time) ([]domain.Mandate, error)
}

// MandateCache: In-memory кэш выданных мандатов по grantor.
// Источник истины PostgreSQL, но на горячем пути Console отдает мандаты агенту только из памяти.
type MandateCache struct {
	mu sync.RWMutex
	// Кэш: grantor_id -> []Mandate (в порядке выпуска)
	byGrantor map[string][]domain.Mandate

	repo   MandateRepository // Используется только для Refresh()
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewMandateCache(repo MandateRepository, rdb *redis.Client, logger *zap.Logger) *MandateCache {
	return &MandateCache{
		byGrantor: make(map[string][]domain.Mandate),
		repo:      repo,
		rdb:       rdb,
		logger:    logger.Named("mandate-cache"),
		now:       time.Now,
	}
}

// Get возвращает глубокую копию действующих мандатов grantor'а: условия и срок
// копируются, вызывающий может менять результат, не задевая кэш.
func (c *MandateCache) Get(grantorID string) []domain.Mandate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]domain.Mandate, 0, len(c.byGrantor[grantorID]))
	for _, m := range c.byGrantor[grantorID] {
		// Истекшие за время жизни кэша тоже не отдаем
		if m.IsActive(now) {
			out = append(out, cloneMandate(m))
		}
	}
	return out
}

func cloneMandate(m domain.Mandate) domain.Mandate {
	m.Conditions = slices.Clone(m.Conditions)
	if m.ValidUntil != nil {
		until := *m.ValidUntil
		m.ValidUntil = &until
	}
	return m
}

// Refresh «холодная загрузка» всех действующих мандатов из БД в память.
func (c *MandateCache) Refresh(ctx context.Context) error {
	mandates, err := c.repo.GetAllActiveMandates(ctx, c.now())
	if err != nil {
		return err
	}

	next := make(map[string][]domain.Mandate)
	for _, m := range mandates {
		next[m.GrantedBy] = append(next[m.GrantedBy], m)
	}

	c.mu.Lock()
	c.byGrantor = next
	c.mu.Unlock()

	c.logger.Info("mandate cache refreshed", zap.Int("grantors", len(next)), zap.Int("count", len(mandates)))
	return nil
}

// StartListener перечитывает кэш по сигналу из Redis (выпуск/отзыв мандата на любом инстансе Console).
func (c *MandateCache) StartListener(ctx context.Context) {
	pubsub := c.rdb.Subscribe(ctx, infra.RedisChanMandateUpdate)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				c.logger.Warn("mandate update channel closed")
				return
			}
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("mandate cache refresh failed", zap.Error(err))
			}
		}
	}
}
