package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/repository/postgres"
)

// ActionLogProvider описывает контракт для чтения журнала действий.
type ActionLogProvider interface {
	FetchLogs(ctx context.Context, f postgres.ActionLogFilter) ([]audit.ActionLog, error)
}

type AuditService struct {
	repo ActionLogProvider
}

func NewAuditService(repo ActionLogProvider) *AuditService {
	return &AuditService{repo: repo}
}

// FetchLogs запрашивает журнал с фильтрацией. Пустые фильтры, все записи.
func (s *AuditService) FetchLogs(ctx context.Context, f postgres.ActionLogFilter) ([]audit.ActionLog, error) {
	logs, err := s.repo.FetchLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch logs: %w", err)
	}
	return logs, nil
}

// StatsProvider: агрегаты журнала для дашборда.
type StatsProvider interface {
	GetDecisionStats(ctx context.Context, since time.Time) (*domain.DecisionStats, error)
}

// DashboardService: сводка решений за последний час.
type DashboardService struct {
	repo   StatsProvider
	window time.Duration
	now    func() time.Time
}

func NewDashboardService(repo StatsProvider) *DashboardService {
	return &DashboardService{repo: repo, window: time.Hour, now: time.Now}
}

func (s *DashboardService) GetDecisionStats(ctx context.Context) (*domain.DecisionStats, error) {
	return s.repo.GetDecisionStats(ctx, s.now().Add(-s.window))
}
