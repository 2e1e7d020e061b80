package mandatev1

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

func TestEvaluateRequest_StructRoundTrip(t *testing.T) {
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	req := &EvaluateRequest{
		Mandates: []domain.Mandate{{
			ID: "m1", Action: domain.ActionPurchase, GrantedBy: "alice",
			ValidFrom: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), ValidUntil: &until,
			Conditions: []domain.Condition{{
				ID: "c1", Type: domain.ConditionMaxPrice, Value: decimal.RequireFromString("0.1"),
				Unit: domain.UnitUSD, Operator: domain.OpLessThanOrEqual,
			}},
		}},
		Action: domain.ProposedAction{Action: domain.ActionPurchase, Price: decimal.RequireFromString("0.30"), Quantity: 3},
	}

	s, err := req.ToStruct()
	require.NoError(t, err)

	got, err := DecodeEvaluateRequest(s)
	require.NoError(t, err)
	require.Len(t, got.Mandates, 1)
	// Деньги едут строкой и не теряют точность
	assert.True(t, got.Mandates[0].Conditions[0].Value.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, got.Action.Price.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, int64(3), got.Action.Quantity)
	require.NotNil(t, got.Mandates[0].ValidUntil)
	assert.True(t, got.Mandates[0].ValidUntil.Equal(until))
}

func TestDecodeEvaluateRequest_Malformed(t *testing.T) {
	_, err := DecodeEvaluateRequest(nil)
	assert.ErrorIs(t, err, domain.ErrMalformedMandates)

	noList, err := structpb.NewStruct(map[string]interface{}{"action": map[string]interface{}{"action": "Purchase"}})
	require.NoError(t, err)
	_, err = DecodeEvaluateRequest(noList)
	assert.ErrorIs(t, err, domain.ErrMalformedMandates)

	nullList, err := structpb.NewStruct(map[string]interface{}{"mandates": nil})
	require.NoError(t, err)
	_, err = DecodeEvaluateRequest(nullList)
	assert.ErrorIs(t, err, domain.ErrMalformedMandates)

	badItem, err := structpb.NewStruct(map[string]interface{}{"mandates": []interface{}{"not an object"}})
	require.NoError(t, err)
	_, err = DecodeEvaluateRequest(badItem)
	assert.ErrorIs(t, err, domain.ErrMalformedMandates)
}

func TestEvaluateRequest_LargeQuantityIsExact(t *testing.T) {
	// 2^53+1 не представимо в float64
	const qty = int64(1)<<53 + 1
	req := &EvaluateRequest{Mandates: []domain.Mandate{},
		Action: domain.ProposedAction{Action: domain.ActionPurchase, Price: decimal.NewFromInt(1), Quantity: qty}}

	s, err := req.ToStruct()
	require.NoError(t, err)

	got, err := DecodeEvaluateRequest(s)
	require.NoError(t, err)
	assert.Equal(t, qty, got.Action.Quantity)
}

func TestDecodeEvaluateRequest_PriceAndQuantityRequired(t *testing.T) {
	tests := []struct {
		name   string
		action map[string]interface{}
	}{
		{"no price", map[string]interface{}{"action": "Purchase", "quantity": "1"}},
		{"no quantity", map[string]interface{}{"action": "Purchase", "price": "1"}},
		{"numeric quantity", map[string]interface{}{"action": "Purchase", "price": "1", "quantity": 1}},
		{"bad price", map[string]interface{}{"action": "Purchase", "price": "cheap", "quantity": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(map[string]interface{}{"mandates": []interface{}{}, "action": tt.action})
			require.NoError(t, err)
			_, err = DecodeEvaluateRequest(s)
			assert.ErrorIs(t, err, domain.ErrMalformedMandates)
		})
	}
}

func TestDecodeEvaluateRequest_EmptyListIsValid(t *testing.T) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"mandates": []interface{}{},
		"action":   map[string]interface{}{"action": "Purchase", "price": "1", "quantity": "1"},
	})
	require.NoError(t, err)

	got, err := DecodeEvaluateRequest(s)
	require.NoError(t, err)
	assert.NotNil(t, got.Mandates)
	assert.Empty(t, got.Mandates)
}

func TestResultRoundTrip(t *testing.T) {
	in := domain.ValidationResult{Valid: false, Message: "Quantity exceeds the maximum allowed quantity of 5.",
		Reason: domain.ReasonQuantityExceeded, MandateID: "m1", ConditionID: "c2"}

	s, err := EncodeResult(in)
	require.NoError(t, err)

	out, err := DecodeResult(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeResult(nil)
	assert.Error(t, err)
}
