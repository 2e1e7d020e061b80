package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/policy"
)

// Имена инструментов, которые видит модель
const (
	ToolPurchaseProduct  = "purchase.PurchaseProduct"
	ToolGetProductPrices = "purchase.GetProductPrices"
)

// MandateSource отдает мандаты, выданные пользователем агенту.
type MandateSource interface {
	Mandates(ctx context.Context) ([]domain.Mandate, error)
}

// StaticMandates: мандаты, полученные один раз при старте сессии.
type StaticMandates []domain.Mandate

func (s StaticMandates) Mandates(context.Context) ([]domain.Mandate, error) {
	return s, nil
}

type Purchaser interface {
	Purchase(ctx context.Context, mandates []domain.Mandate, order domain.PurchaseOrder) (domain.PurchaseReceipt, error)
	ProductPrices(ctx context.Context, productName string) ([]domain.ProductSpecification, error)
}

// OrderFromArguments собирает заказ из аргументов вызова.
func OrderFromArguments(args Arguments) (domain.PurchaseOrder, error) {
	order := domain.PurchaseOrder{
		ProductName: args.Text("productName"),
		Currency:    domain.ConditionUnit(args.Text("currency")),
	}
	if order.ProductName == "" {
		return order, fmt.Errorf("%w: productName is required", domain.ErrInvalidOrder)
	}

	var err error
	if order.Quantity, err = args.Int64("quantity"); err != nil {
		return order, fmt.Errorf("%w: %v", domain.ErrInvalidOrder, err)
	}
	if order.Price, err = args.Decimal("price"); err != nil {
		return order, fmt.Errorf("%w: %v", domain.ErrInvalidOrder, err)
	}
	if !order.Price.IsPositive() {
		return order, fmt.Errorf("%w: price must be positive", domain.ErrInvalidOrder)
	}
	return order, nil
}

// PurchaseTool покупает товар через шлюз, передавая мандаты.
type PurchaseTool struct {
	client   Purchaser
	mandates MandateSource
	local    policy.Enforcer // nil, проверка только на шлюзе
	now      func() time.Time
}

func NewPurchaseTool(client Purchaser, mandates MandateSource, local policy.Enforcer) *PurchaseTool {
	return &PurchaseTool{client: client, mandates: mandates, local: local, now: time.Now}
}

func (t *PurchaseTool) Name() string { return ToolPurchaseProduct }

func (t *PurchaseTool) Invoke(ctx context.Context, args Arguments) (string, error) {
	order, err := OrderFromArguments(args)
	if err != nil {
		return "", err
	}

	mandates, err := t.mandates.Mandates(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load mandates: %w", err)
	}

	// 1. Локальная проверка до сети: нарушение возвращается модели как текст
	if t.local != nil {
		action := order.ToAction()
		res, err := t.local.Authorize(ctx, policy.Applicable(mandates, action.Action, t.now()), action)
		if err != nil {
			return "", err
		}
		if !res.Valid {
			return res.Message, nil
		}
	}

	// 2. Шлюз проверит мандаты еще раз
	receipt, err := t.client.Purchase(ctx, mandates, order)
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Status == http.StatusUnauthorized {
			return gwErr.Message, nil
		}
		return "", fmt.Errorf("failed to complete purchase: %w", err)
	}

	return fmt.Sprintf("The purchase of %d item(s) of %s completed! Purchase ID: %s",
		order.Quantity, order.ProductName, receipt.PurchaseID), nil
}

// PricesTool возвращает цены производителей в JSON.
type PricesTool struct {
	client Purchaser
}

func NewPricesTool(client Purchaser) *PricesTool {
	return &PricesTool{client: client}
}

func (t *PricesTool) Name() string { return ToolGetProductPrices }

func (t *PricesTool) Invoke(ctx context.Context, args Arguments) (string, error) {
	name := args.Text("productName")
	if name == "" {
		return "", fmt.Errorf("%w: productName is required", domain.ErrInvalidOrder)
	}

	specs, err := t.client.ProductPrices(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to get product information: %w", err)
	}

	data, err := json.Marshal(specs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
