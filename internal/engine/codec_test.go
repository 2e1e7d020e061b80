package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/agent-mandate/internal/domain"
)

func TestDecodeMandates(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr error
	}{
		{"missing header", "", 0, domain.ErrMandatesRequired},
		{"whitespace only", "   ", 0, domain.ErrMandatesRequired},
		{"json null", "null", 0, domain.ErrMalformedMandates},
		{"not json", "{oops", 0, domain.ErrMalformedMandates},
		{"object instead of array", `{"mandateId":"m1"}`, 0, domain.ErrMalformedMandates},
		{"empty array", "[]", 0, nil},
		{"one mandate", `[{"mandateId":"m1","action":"Purchase","grantedByUserId":"alice","validFrom":"2026-01-01T00:00:00Z","conditions":[{"conditionId":"c1","type":"MaxPrice","value":"150","unit":"USD","operator":"LessThanOrEqual"}]}]`, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMandates(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestEncodeMandatesRoundTrip(t *testing.T) {
	raw, err := EncodeMandates(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	in := []domain.Mandate{testMandate("m1", maxPriceCond("c1", "150.10"))}
	raw, err = EncodeMandates(in)
	require.NoError(t, err)

	out, err := DecodeMandates(raw)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Conditions[0].Value.Equal(in[0].Conditions[0].Value))
}
