package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/policy"
)

// PurchaseProvider: внешний магазин. В проде обернут ReliabilityWrapper.
type PurchaseProvider interface {
	Quote(ctx context.Context, productName string) ([]domain.ProductSpecification, error)
	Purchase(ctx context.Context, order domain.PurchaseOrder) (domain.PurchaseReceipt, error)
}

// RevocationChecker отвечает, есть ли в наборе отозванный мандат.
type RevocationChecker interface {
	FirstRevoked(mandates []domain.Mandate) (string, bool)
}

// PolicyViolationError: мандаты запрещают действие. Message идет агенту как есть.
type PolicyViolationError struct {
	Result domain.ValidationResult
}

func (e *PolicyViolationError) Error() string {
	return e.Result.Message
}

// PurchaseGateway: хост вычислителя на стороне магазина.
// Сам вычислитель ничего не логирует: аудит, метрики и отзыв живут здесь.
type PurchaseGateway struct {
	eval        *policy.Evaluator
	auditor     audit.Auditor
	provider    PurchaseProvider
	revocations RevocationChecker
	metrics     *Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewPurchaseGateway(
	eval *policy.Evaluator,
	auditor audit.Auditor,
	provider PurchaseProvider,
	revocations RevocationChecker,
	metrics *Metrics,
	logger *zap.Logger,
) *PurchaseGateway {
	if eval == nil {
		eval = policy.NewEvaluator(policy.WithEmptyMandates(policy.EmptyDeny))
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &PurchaseGateway{
		eval:        eval,
		auditor:     auditor,
		provider:    provider,
		revocations: revocations,
		metrics:     metrics,
		logger:      logger.Named("gateway"),
		now:         time.Now,
	}
}

// Authorize: отзыв, фильтр по действию и сроку, затем вычислитель.
// Реализует policy.Enforcer, поэтому тот же путь обслуживает и gRPC.
func (g *PurchaseGateway) Authorize(ctx context.Context, mandates []domain.Mandate, action domain.ProposedAction) (domain.ValidationResult, error) {
	// 1. Отозванный мандат означает отказ целиком, а не тихое исключение из набора
	if g.revocations != nil {
		if id, revoked := g.revocations.FirstRevoked(mandates); revoked {
			g.metrics.Decisions.WithLabelValues(action.Action, "deny", "revoked").Inc()
			g.metrics.ErrorTotal.WithLabelValues("revoked").Inc()
			return domain.ValidationResult{MandateID: id}, fmt.Errorf("%w: %s", domain.ErrMandateRevoked, id)
		}
	}

	// 2. Только мандаты на это действие и в пределах срока
	applicable := policy.Applicable(mandates, action.Action, g.now())

	for _, c := range policy.UnrecognizedConditions(applicable) {
		g.logger.Warn("condition is not enforced",
			zap.String("trace_id", extractTraceID(ctx)),
			zap.String("condition_id", c.ID),
			zap.String("type", string(c.Type)),
			zap.String("operator", string(c.Operator)))
	}

	// 3. Вычислитель
	start := time.Now()
	res := g.eval.Evaluate(applicable, action)
	g.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	verdict := "allow"
	if !res.Valid {
		verdict = "deny"
	}
	g.metrics.Decisions.WithLabelValues(action.Action, verdict, string(res.Reason)).Inc()

	return res, nil
}

// ProcessPurchase проверяет мандаты и, если действие разрешено, передает заказ поставщику.
// Цена обязательна: заказ без цены нельзя сверить с MaxPrice.
func (g *PurchaseGateway) ProcessPurchase(ctx context.Context, agentID string, mandates []domain.Mandate, order domain.PurchaseOrder) (domain.PurchaseReceipt, error) {
	if order.ProductName == "" || order.Quantity < 1 || !order.Price.IsPositive() {
		g.metrics.ErrorTotal.WithLabelValues("malformed_input").Inc()
		return domain.PurchaseReceipt{}, domain.ErrInvalidOrder
	}

	action := order.ToAction()
	entry := audit.ActionLog{
		ID:        uuid.New().String(),
		TraceID:   extractTraceID(ctx),
		AgentID:   agentID,
		Action:    action.Action,
		Source:    audit.SourceGateway,
		Price:     action.Price,
		Quantity:  action.Quantity,
		Timestamp: g.now(),
	}

	res, err := g.Authorize(ctx, mandates, action)
	if err != nil {
		entry.MandateID = res.MandateID
		entry.Reason = "revoked"
		entry.Remarks = err.Error()
		g.log(entry)
		return domain.PurchaseReceipt{}, err
	}

	entry.MandateID = res.MandateID
	entry.Reason = string(res.Reason)
	entry.Remarks = res.Message

	if !res.Valid {
		g.logger.Info("purchase denied by mandate",
			zap.String("trace_id", entry.TraceID),
			zap.String("agent_id", agentID),
			zap.String("mandate_id", res.MandateID),
			zap.String("reason", string(res.Reason)))
		g.log(entry)
		return domain.PurchaseReceipt{}, &PolicyViolationError{Result: res}
	}

	receipt, err := g.provider.Purchase(ctx, order)
	if err != nil {
		g.metrics.ErrorTotal.WithLabelValues("provider").Inc()
		entry.Reason = "provider_error"
		entry.Remarks = err.Error()
		g.log(entry)
		return domain.PurchaseReceipt{}, err
	}

	entry.WasSuccessful = true
	entry.Remarks = fmt.Sprintf("%s; purchase %s", res.Message, receipt.PurchaseID)
	g.log(entry)
	return receipt, nil
}

// ProductInfo: список цен производителей, мандаты не нужны.
func (g *PurchaseGateway) ProductInfo(ctx context.Context, productName string) ([]domain.ProductSpecification, error) {
	if productName == "" {
		return nil, domain.ErrInvalidOrder
	}
	specs, err := g.provider.Quote(ctx, productName)
	if err != nil && !errors.Is(err, context.Canceled) {
		g.metrics.ErrorTotal.WithLabelValues("provider").Inc()
	}
	return specs, err
}

func (g *PurchaseGateway) log(entry audit.ActionLog) {
	if g.auditor != nil {
		g.auditor.Log(entry)
	}
}
