package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

// Approver решает, можно ли выйти за рамки мандата (Human-in-the-loop).
type Approver interface {
	Approve(ctx context.Context, req *domain.ApprovalRequest) (bool, error)
}

// DenyApprover: без человека нарушение мандата всегда означает отказ.
type DenyApprover struct{}

func (DenyApprover) Approve(context.Context, *domain.ApprovalRequest) (bool, error) {
	return false, nil
}

// PromptApprover спрашивает пользователя в терминале (Y/N).
type PromptApprover struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptApprover(in io.Reader, out io.Writer) *PromptApprover {
	return &PromptApprover{in: bufio.NewReader(in), out: out}
}

func (p *PromptApprover) Approve(_ context.Context, req *domain.ApprovalRequest) (bool, error) {
	fmt.Fprintf(p.out, "System > %s\nSystem > The agent want to purchase %d %s, do you want to proceed? (Y/N)\n> ",
		req.Violation, req.Quantity, req.ProductName)

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// RedisApprover ставит запрос в очередь консоли и ждет решения оператора.
// Нет ответа до таймаута: отказ.
type RedisApprover struct {
	rdb     *redis.Client
	store   ApprovalStore
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// ApprovalStore: место, где консоль видит очередь (redisstore.ApprovalStore).
type ApprovalStore interface {
	Save(ctx context.Context, req *domain.ApprovalRequest) error
}

func NewRedisApprover(rdb *redis.Client, store ApprovalStore, timeout time.Duration, logger *zap.Logger) *RedisApprover {
	return &RedisApprover{
		rdb:     rdb,
		store:   store,
		timeout: timeout,
		logger:  logger.Named("hitl"),
		now:     time.Now,
	}
}

func (a *RedisApprover) Approve(ctx context.Context, req *domain.ApprovalRequest) (bool, error) {
	now := a.now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = domain.StatusPending
	req.CreatedAt, req.UpdatedAt = now, now

	// 1. Подписка до публикации запроса: иначе быстрое решение можно пропустить
	pubsub := a.rdb.Subscribe(ctx, infra.RedisChanApprovalDecisions)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return false, fmt.Errorf("hitl: subscribe failed: %w", err)
	}

	// 2. Запрос в очередь консоли
	if err := a.store.Save(ctx, req); err != nil {
		return false, fmt.Errorf("hitl: %w", err)
	}
	a.logger.Info("approval requested",
		zap.String("approval_id", req.ID),
		zap.String("product", req.ProductName),
		zap.Int64("quantity", req.Quantity))

	// 3. Ждем сигнал "id:true|false"
	waitCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ch := pubsub.Channel()
	for {
		select {
		case <-waitCtx.Done():
			a.logger.Warn("approval timed out, denying", zap.String("approval_id", req.ID))
			return false, nil
		case msg, ok := <-ch:
			if !ok {
				return false, fmt.Errorf("hitl: decision channel closed")
			}
			i := strings.LastIndex(msg.Payload, ":")
			if i < 0 || msg.Payload[:i] != req.ID {
				continue // Решение по чужому запросу
			}
			return msg.Payload[i+1:] == "true", nil
		}
	}
}
