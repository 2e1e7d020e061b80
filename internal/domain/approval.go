package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Статусы State Machine
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

var (
	ErrInvalidTransition = errors.New("invalid approval status transition")
	ErrAlreadyProcessed  = errors.New("approval request already processed")
	ErrApprovalNotFound  = errors.New("approval request not found")
)

// ApprovalRequest: запрос к человеку (HITL), когда агент хочет выйти за рамки мандата.
type ApprovalRequest struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	GrantorID string `json:"grantor_id"`
	Tool      string `json:"tool"` // e.g. "purchase.PurchaseProduct"

	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Violation   string          `json:"violation"` // Сообщение вычислителя, из-за которого нужен апрув

	Status     ApprovalStatus `json:"status"`
	ReviewerID *string        `json:"reviewer_id,omitempty"`
	Comment    *string        `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransitionTo проверяет правила конечного автомата
func (a *ApprovalRequest) CanTransitionTo(next ApprovalStatus) error {
	if a.Status != StatusPending {
		return ErrAlreadyProcessed
	}
	if next == StatusPending {
		return ErrInvalidTransition
	}
	return nil
}
