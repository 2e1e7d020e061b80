package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

// ApprovalStore: очередь HITL-запросов (redisstore.ApprovalStore).
type ApprovalStore interface {
	Get(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	List(ctx context.Context, status domain.ApprovalStatus) ([]*domain.ApprovalRequest, error)
	Decide(ctx context.Context, id string, approved bool, reviewerID, comment string, now time.Time) (*domain.ApprovalRequest, error)
}

type ApprovalService struct {
	store  ApprovalStore
	logger *zap.Logger
	now    func() time.Time
}

func NewApprovalService(store ApprovalStore, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		store:  store,
		logger: logger.Named("approval-service"),
		now:    time.Now,
	}
}

func (s *ApprovalService) GetApproval(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	return s.store.Get(ctx, id)
}

func (s *ApprovalService) GetApprovals(ctx context.Context, status string) ([]*domain.ApprovalRequest, error) {
	// Приводим к верхнему регистру, так как в константах PENDING/APPROVED
	st := domain.ApprovalStatus(strings.ToUpper(status))
	switch st {
	case "", domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, status)
	}
	return s.store.List(ctx, st)
}

// DecideApproval фиксирует решение оператора и будит ждущего агента.
// reviewerID обязателен для подотчетности.
func (s *ApprovalService) DecideApproval(ctx context.Context, id string, approved bool, reviewerID, comment string) error {
	req, err := s.store.Decide(ctx, id, approved, reviewerID, comment, s.now())
	if err != nil {
		s.logger.Warn("approval decision rejected",
			zap.String("approval_id", id),
			zap.String("reviewer_id", reviewerID),
			zap.Error(err))
		return err
	}

	s.logger.Info("HITL decision processed successfully",
		zap.String("approval_id", id),
		zap.String("agent_id", req.AgentID),
		zap.String("reviewer", reviewerID),
		zap.String("result", string(req.Status)))
	return nil
}
