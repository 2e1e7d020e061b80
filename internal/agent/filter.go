package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/policy"
)

// MsgNotApproved: результат вызова, когда пользователь не одобрил выход за мандат.
const MsgNotApproved = "The purchase was not approved by the user"

// Причины в журнале для решений человека
const (
	ReasonApprovedByUser = "approved_by_user"
	ReasonDeniedByUser   = "denied_by_user"
	ReasonCheckFailed    = "check_failed"
)

// MandateFilter перехватывает покупку до инструмента.
// Действие в рамках мандатов проходит сразу, нарушение, только с одобрения человека.
type MandateFilter struct {
	agentID   string
	grantorID string
	mandates  MandateSource
	validator policy.Enforcer // Локальный Evaluator или connectors.GRPCValidator
	approver  Approver
	auditor   audit.Auditor
	logger    *zap.Logger
	now       func() time.Time
}

// NewMandateFilter: при nil auditor журнал решений не ведется.
func NewMandateFilter(agentID, grantorID string, mandates MandateSource, validator policy.Enforcer, approver Approver, auditor audit.Auditor, logger *zap.Logger) *MandateFilter {
	if approver == nil {
		approver = DenyApprover{}
	}
	return &MandateFilter{
		agentID:   agentID,
		grantorID: grantorID,
		mandates:  mandates,
		validator: validator,
		approver:  approver,
		auditor:   auditor,
		logger:    logger.Named("mandate-filter"),
		now:       time.Now,
	}
}

func (f *MandateFilter) Invoke(ctx context.Context, call Call, next Next) (string, error) {
	if call.Tool != ToolPurchaseProduct {
		return next(ctx, call)
	}

	order, err := OrderFromArguments(call.Args)
	if err != nil {
		return "", err
	}

	mandates, err := f.mandates.Mandates(ctx)
	if err != nil {
		return "", err
	}

	// 1. Вердикт вычислителя. Ошибка проверки означает отказ, а не "разрешено"
	action := order.ToAction()
	entry := audit.ActionLog{
		ID:        uuid.New().String(),
		TraceID:   uuid.New().String(),
		AgentID:   f.agentID,
		Action:    action.Action,
		Source:    audit.SourceAgent,
		Price:     action.Price,
		Quantity:  action.Quantity,
		Timestamp: f.now(),
	}

	res, err := f.validator.Authorize(ctx, policy.Applicable(mandates, action.Action, f.now()), action)
	if err != nil {
		f.logger.Error("mandate validation failed", zap.String("tool", call.Tool), zap.Error(err))
		entry.Reason = ReasonCheckFailed
		entry.Remarks = err.Error()
		f.record(entry)
		return "", err
	}

	entry.MandateID = res.MandateID
	entry.Reason = string(res.Reason)
	entry.Remarks = res.Message
	if res.Valid {
		entry.WasSuccessful = true
		f.record(entry)
		return next(ctx, call)
	}

	// 2. Выход за мандат, спрашиваем человека
	f.logger.Info("purchase exceeds mandate, asking for approval",
		zap.String("agent_id", f.agentID),
		zap.String("mandate_id", res.MandateID),
		zap.String("reason", string(res.Reason)))

	approved, err := f.approver.Approve(ctx, &domain.ApprovalRequest{
		AgentID:     f.agentID,
		GrantorID:   f.grantorID,
		Tool:        call.Tool,
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
		Price:       order.Price,
		Violation:   res.Message,
	})
	if err != nil {
		f.logger.Warn("approval failed, denying", zap.Error(err))
	}
	if err != nil || !approved {
		entry.Reason = ReasonDeniedByUser
		f.record(entry)
		return MsgNotApproved, nil
	}

	entry.WasSuccessful = true
	entry.Reason = ReasonApprovedByUser
	f.record(entry)
	return next(ctx, call)
}

func (f *MandateFilter) record(entry audit.ActionLog) {
	if f.auditor != nil {
		f.auditor.Log(entry)
	}
}
