package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

// MandateRepository описывает требования сервиса к хранилищу мандатов
type MandateRepository interface {
	GetMandate(ctx context.Context, id string) (*domain.Mandate, error)
	CreateMandate(ctx context.Context, m *domain.Mandate) error
	RevokeMandate(ctx context.Context, id string) error
}

// MandateReader: горячий путь выдачи мандатов агенту (policy.MandateCache).
type MandateReader interface {
	Get(grantorID string) []domain.Mandate
}

// DefaultMandateLifetime: срок действия мандата по умолчанию
const DefaultMandateLifetime = 48 * time.Hour

type MandateService struct {
	repo   MandateRepository
	cache  MandateReader
	rdb    *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewMandateService(repo MandateRepository, cache MandateReader, rdb *redis.Client, logger *zap.Logger) *MandateService {
	return &MandateService{
		repo:   repo,
		cache:  cache,
		rdb:    rdb,
		logger: logger.Named("mandate-service"),
		now:    time.Now,
	}
}

// ForGrantor возвращает действующие мандаты пользователя (из кэша, без БД).
func (s *MandateService) ForGrantor(grantorID string) []domain.Mandate {
	return s.cache.Get(grantorID)
}

func (s *MandateService) Get(ctx context.Context, id string) (*domain.Mandate, error) {
	return s.repo.GetMandate(ctx, id)
}

// Issue выпускает мандат: ID, проверка, запись в БД, сигнал кэшам.
func (s *MandateService) Issue(ctx context.Context, m *domain.Mandate) error {
	now := s.now()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.ValidFrom.IsZero() {
		m.ValidFrom = now
	}
	if m.ValidUntil == nil {
		until := m.ValidFrom.Add(DefaultMandateLifetime)
		m.ValidUntil = &until
	}
	for i := range m.Conditions {
		if m.Conditions[i].ID == "" {
			m.Conditions[i].ID = uuid.New().String()
		}
	}

	if err := m.Validate(); err != nil {
		return err
	}

	if err := s.repo.CreateMandate(ctx, m); err != nil {
		s.logger.Error("failed to persist mandate", zap.String("mandate_id", m.ID), zap.Error(err))
		return fmt.Errorf("mandate issue failed: %w", err)
	}

	s.logger.Info("mandate issued",
		zap.String("mandate_id", m.ID),
		zap.String("grantor_id", m.GrantedBy),
		zap.Int("conditions", len(m.Conditions)))

	s.notifyUpdate(ctx)
	return nil
}

// Revoke отзывает мандат: БД, множество отозванных в Redis, сигнал шлюзам, сигнал кэшам.
func (s *MandateService) Revoke(ctx context.Context, id string) error {
	// 1. Persistence Layer
	if err := s.repo.RevokeMandate(ctx, id); err != nil {
		return err
	}

	// 2. Real-time Signaling: шлюзы перестают принимать мандат сразу, не дожидаясь срока
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, infra.RedisKeyRevokedMandates, id)
	pipe.Publish(ctx, infra.RedisChanRevocation, fmt.Sprintf("%s:true", id))
	if _, err := pipe.Exec(ctx); err != nil {
		// Шлюзы подтянут отзыв из БД при переподключении
		s.logger.Warn("revocation signal delivery failed", zap.String("mandate_id", id), zap.Error(err))
	} else {
		s.logger.Info("mandate revoked", zap.String("mandate_id", id))
	}

	s.notifyUpdate(ctx)
	return nil
}

// notifyUpdate: все инстансы консоли перечитают кэш мандатов.
func (s *MandateService) notifyUpdate(ctx context.Context) {
	if err := s.rdb.Publish(ctx, infra.RedisChanMandateUpdate, "refresh").Err(); err != nil {
		s.logger.Warn("mandate update signal failed", zap.Error(err))
	}
}

// DefaultPurchaseMandate: типовой мандат на покупку: 2 дня, до 150 USD за штуку, до 100 штук.
func DefaultPurchaseMandate(grantorID string, now time.Time) domain.Mandate {
	until := now.Add(DefaultMandateLifetime)
	return domain.Mandate{
		ID:         uuid.New().String(),
		Action:     domain.ActionPurchase,
		GrantedBy:  grantorID,
		ValidFrom:  now,
		ValidUntil: &until,
		Conditions: []domain.Condition{
			{
				ID:       uuid.New().String(),
				Type:     domain.ConditionMaxPrice,
				Value:    decimal.NewFromInt(150),
				Unit:     domain.UnitUSD,
				Operator: domain.OpLessThanOrEqual,
			},
			{
				ID:       uuid.New().String(),
				Type:     domain.ConditionMaxQuantity,
				Value:    decimal.NewFromInt(100),
				Unit:     domain.UnitItems,
				Operator: domain.OpLessThanOrEqual,
			},
		},
	}
}
