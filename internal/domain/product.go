package domain

import "github.com/shopspring/decimal"

// ProductSpecification: предложение производителя по товару.
type ProductSpecification struct {
	Name         string          `json:"name"`
	Manufacturer string          `json:"manufacturer"`
	Price        decimal.Decimal `json:"price"`
	Discount     string          `json:"discount,omitempty"`
}

// PurchaseOrder: то, что агент просит купить.
type PurchaseOrder struct {
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Currency    ConditionUnit   `json:"currency,omitempty"`
}

// ToAction переводит заказ в описание действия для вычислителя.
func (o PurchaseOrder) ToAction() ProposedAction {
	return ProposedAction{
		Action:     ActionPurchase,
		Price:      o.Price,
		Quantity:   o.Quantity,
		Currency:   o.Currency,
		Attributes: map[string]any{"productName": o.ProductName},
	}
}

type PurchaseReceipt struct {
	PurchaseID string `json:"purchaseId"`
}
