package connectors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xela07ax/agent-mandate/internal/domain"
)

var manufacturers = []string{"King Fruits", "Fruitopia Market", "The Juicy Orchard"}

// MockStore: демонстрационный поставщик. Реальная интеграция с магазином вне рамок шлюза.
type MockStore struct {
	// MaxLatency имитирует сетевую задержку поставщика (0, без задержки)
	MaxLatency time.Duration
}

// Quote возвращает цены трех производителей на товар.
func (s *MockStore) Quote(ctx context.Context, productName string) ([]domain.ProductSpecification, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	base := rand.Float64() * 3
	specs := make([]domain.ProductSpecification, 0, len(manufacturers))
	for _, m := range manufacturers {
		specs = append(specs, domain.ProductSpecification{
			Name:         productName,
			Manufacturer: m,
			Price:        decimal.NewFromFloat(base + rand.Float64()).Round(2),
		})
	}
	return specs, nil
}

// Purchase оформляет заказ и возвращает его ID.
func (s *MockStore) Purchase(ctx context.Context, order domain.PurchaseOrder) (domain.PurchaseReceipt, error) {
	if err := s.wait(ctx); err != nil {
		return domain.PurchaseReceipt{}, err
	}
	if order.ProductName == "" {
		return domain.PurchaseReceipt{}, fmt.Errorf("%w: product name is empty", ErrProductUnavailable)
	}
	return domain.PurchaseReceipt{PurchaseID: uuid.New().String()}, nil
}

func (s *MockStore) wait(ctx context.Context) error {
	if s.MaxLatency <= 0 {
		return ctx.Err()
	}
	latency := time.Duration(rand.Int64N(int64(s.MaxLatency)))
	select {
	case <-time.After(latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
