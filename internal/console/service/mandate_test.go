package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

type memMandateRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.Mandate
	revoked map[string]bool
}

func newMemMandateRepo() *memMandateRepo {
	return &memMandateRepo{byID: map[string]domain.Mandate{}, revoked: map[string]bool{}}
}

func (r *memMandateRepo) GetMandate(_ context.Context, id string) (*domain.Mandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrMandateNotFound
	}
	return &m, nil
}

func (r *memMandateRepo) CreateMandate(_ context.Context, m *domain.Mandate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.ID] = *m
	return nil
}

func (r *memMandateRepo) RevokeMandate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok || r.revoked[id] {
		return domain.ErrMandateNotFound
	}
	r.revoked[id] = true
	return nil
}

type staticReader map[string][]domain.Mandate

func (s staticReader) Get(grantorID string) []domain.Mandate { return s[grantorID] }

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// subscribe возвращает канал сообщений, подписка уже подтверждена.
func subscribe(t *testing.T, rdb *redis.Client, channel string) <-chan *redis.Message {
	t.Helper()
	sub := rdb.Subscribe(context.Background(), channel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	return sub.Channel()
}

func receive(t *testing.T, ch <-chan *redis.Message) string {
	t.Helper()
	select {
	case msg := <-ch:
		return msg.Payload
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
		return ""
	}
}

func TestMandateService_IssueFillsDefaults(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := newMemMandateRepo()
	svc := NewMandateService(repo, staticReader{}, rdb, zap.NewNop())
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	updates := subscribe(t, rdb, infra.RedisChanMandateUpdate)

	m := &domain.Mandate{
		Action:    domain.ActionPurchase,
		GrantedBy: "alice",
		Conditions: []domain.Condition{
			{Type: domain.ConditionMaxPrice, Value: decimal.NewFromInt(10), Unit: domain.UnitUSD, Operator: domain.OpLessThanOrEqual},
		},
	}
	require.NoError(t, svc.Issue(context.Background(), m))

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, now, m.ValidFrom)
	require.NotNil(t, m.ValidUntil)
	assert.Equal(t, now.Add(DefaultMandateLifetime), *m.ValidUntil)
	assert.NotEmpty(t, m.Conditions[0].ID)

	stored, err := repo.GetMandate(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.GrantedBy)

	assert.Equal(t, "refresh", receive(t, updates))
}

func TestMandateService_IssueRejectsInvalid(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := newMemMandateRepo()
	svc := NewMandateService(repo, staticReader{}, rdb, zap.NewNop())

	err := svc.Issue(context.Background(), &domain.Mandate{GrantedBy: "alice"})
	assert.ErrorIs(t, err, domain.ErrInvalidMandate)
	assert.Empty(t, repo.byID)
}

func TestMandateService_RevokeSignalsGateways(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := newMemMandateRepo()
	svc := NewMandateService(repo, staticReader{}, rdb, zap.NewNop())

	m := DefaultPurchaseMandate("alice", time.Now())
	require.NoError(t, repo.CreateMandate(context.Background(), &m))

	signals := subscribe(t, rdb, infra.RedisChanRevocation)

	require.NoError(t, svc.Revoke(context.Background(), m.ID))
	assert.Equal(t, m.ID+":true", receive(t, signals))

	ok, err := mr.SIsMember(infra.RedisKeyRevokedMandates, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, svc.Revoke(context.Background(), m.ID), domain.ErrMandateNotFound)
}

func TestMandateService_ForGrantorReadsCache(t *testing.T) {
	_, rdb := newTestRedis(t)
	m := DefaultPurchaseMandate("alice", time.Now())
	svc := NewMandateService(newMemMandateRepo(), staticReader{"alice": {m}}, rdb, zap.NewNop())

	assert.Len(t, svc.ForGrantor("alice"), 1)
	assert.Empty(t, svc.ForGrantor("bob"))
}

func TestDefaultPurchaseMandate(t *testing.T) {
	now := time.Now()
	m := DefaultPurchaseMandate("alice", now)

	require.NoError(t, m.Validate())
	assert.Equal(t, domain.ActionPurchase, m.Action)
	require.Len(t, m.Conditions, 2)
	assert.True(t, m.Conditions[0].Value.Equal(decimal.NewFromInt(150)))
	assert.True(t, m.Conditions[1].Value.Equal(decimal.NewFromInt(100)))
	assert.True(t, m.IsActive(now))
	assert.False(t, m.IsActive(now.Add(DefaultMandateLifetime)))
}
