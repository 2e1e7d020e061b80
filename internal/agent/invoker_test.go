package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

type echoTool struct{ name string }

func (t echoTool) Name() string { return t.name }

func (t echoTool) Invoke(_ context.Context, args Arguments) (string, error) {
	return "tool:" + args.Text("v"), nil
}

func recordingFilter(trace *[]string, name string) Filter {
	return FilterFunc(func(ctx context.Context, call Call, next Next) (string, error) {
		*trace = append(*trace, name+">")
		res, err := next(ctx, call)
		*trace = append(*trace, "<"+name)
		return res, err
	})
}

func TestInvoker_FiltersWrapInOrder(t *testing.T) {
	var trace []string
	inv := NewInvoker(zap.NewNop(), recordingFilter(&trace, "a"), recordingFilter(&trace, "b"))
	inv.Register(echoTool{name: "echo"})

	res, err := inv.Invoke(context.Background(), Call{Tool: "echo", Args: Arguments{"v": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "tool:x", res)
	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, trace)
}

func TestInvoker_FilterCanShortCircuit(t *testing.T) {
	block := FilterFunc(func(context.Context, Call, Next) (string, error) {
		return "blocked", nil
	})
	inv := NewInvoker(zap.NewNop(), block)
	inv.Register(echoTool{name: "echo"})

	res, err := inv.Invoke(context.Background(), Call{Tool: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "blocked", res)
}

func TestInvoker_UnknownTool(t *testing.T) {
	inv := NewInvoker(zap.NewNop())
	_, err := inv.Invoke(context.Background(), Call{Tool: "nope"})
	assert.ErrorContains(t, err, "unknown tool")
}

func TestArguments(t *testing.T) {
	args := Arguments{
		"name":   "Apple",
		"qty":    float64(3),
		"frac":   2.5,
		"strQty": "7",
		"price":  "149.99",
		"num":    12.5,
		"bad":    "abc",
	}

	assert.Equal(t, "Apple", args.Text("name"))
	assert.Equal(t, "", args.Text("missing"))

	n, err := args.Int64("qty")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = args.Int64("strQty")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = args.Int64("frac")
	assert.Error(t, err)
	_, err = args.Int64("missing")
	assert.Error(t, err)

	d, err := args.Decimal("price")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("149.99")))

	d, err = args.Decimal("num")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = args.Decimal("missing")
	assert.ErrorContains(t, err, "is required")

	_, err = args.Decimal("bad")
	assert.Error(t, err)
}

func TestOrderFromArguments(t *testing.T) {
	o, err := OrderFromArguments(Arguments{"productName": "Apple", "quantity": float64(2), "price": "1.5", "currency": "USD"})
	require.NoError(t, err)
	assert.Equal(t, "Apple", o.ProductName)
	assert.Equal(t, int64(2), o.Quantity)
	assert.Equal(t, "USD", string(o.Currency))

	_, err = OrderFromArguments(Arguments{"quantity": float64(2)})
	assert.True(t, strings.Contains(err.Error(), "productName"))

	// Без цены заказ нельзя сверить с MaxPrice
	_, err = OrderFromArguments(Arguments{"productName": "Apple", "quantity": float64(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = OrderFromArguments(Arguments{"productName": "Apple", "quantity": float64(1), "price": "0"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}
