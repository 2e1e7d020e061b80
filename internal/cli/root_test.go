package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/domain"
	"github.com/xela07ax/agent-mandate/internal/engine"
	"github.com/xela07ax/agent-mandate/internal/infra"
)

type anyTokenValidator struct{}

func (anyTokenValidator) VerifyToken(token string) (*domain.AgentClaims, error) {
	if token == "" {
		return nil, errors.New("no token")
	}
	return &domain.AgentClaims{Scope: "purchase.write", AgentID: "cli-agent"}, nil
}

// startStack поднимает консоль (только выдача мандатов) и шлюз поверх MockStore.
func startStack(t *testing.T) *infra.Config {
	t.Helper()

	until := time.Now().Add(time.Hour)
	mandates := []domain.Mandate{{
		ID: "m1", Action: domain.ActionPurchase, GrantedBy: "alice",
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: &until,
		Conditions: []domain.Condition{
			{ID: "c1", Type: domain.ConditionMaxPrice, Value: decimal.NewFromInt(150), Unit: domain.UnitUSD, Operator: domain.OpLessThanOrEqual},
		},
	}}
	console := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/grantors/alice/mandates" {
			_ = json.NewEncoder(w).Encode([]domain.Mandate{})
			return
		}
		_ = json.NewEncoder(w).Encode(mandates)
	}))
	t.Cleanup(console.Close)

	gw := engine.NewPurchaseGateway(nil, nil, &connectors.MockStore{}, nil, nil, zap.NewNop())
	gateway := httptest.NewServer(engine.NewHTTPServer(gw, anyTokenValidator{}, []string{"purchase.write"}, nil, zap.NewNop()))
	t.Cleanup(gateway.Close)

	return &infra.Config{
		Engine: infra.EngineConfig{EmptyMandates: "deny"},
		Agent: infra.AgentConfig{
			ID:              "cli-agent",
			GatewayURL:      gateway.URL,
			ConsoleURL:      console.URL,
			AccessToken:     "token",
			LocalValidation: true,
		},
	}
}

func run(t *testing.T, cfg *infra.Config, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(cfg, zap.NewNop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_PurchaseWithinMandate(t *testing.T) {
	cfg := startStack(t)

	out, err := run(t, cfg, "", "purchase", "--grantor", "alice", "--approver", "deny",
		"--product", "Apple", "--quantity", "2", "--price", "1.25")
	require.NoError(t, err)
	assert.Contains(t, out, "The purchase of 2 item(s) of Apple completed!")
}

func TestCLI_PurchaseOverMandateDenied(t *testing.T) {
	cfg := startStack(t)

	out, err := run(t, cfg, "", "purchase", "--grantor", "alice", "--approver", "deny",
		"--product", "Laptop", "--price", "999")
	require.NoError(t, err)
	assert.Contains(t, out, "The purchase was not approved by the user")
}

func TestCLI_PromptApprovalStillEnforcedDownstream(t *testing.T) {
	cfg := startStack(t)

	// Человек одобрил, но мандат по-прежнему запрещает покупку
	out, err := run(t, cfg, "y\n", "purchase", "--grantor", "alice", "--approver", "prompt",
		"--product", "Laptop", "--price", "999")
	require.NoError(t, err)
	assert.Contains(t, out, "do you want to proceed?")
	assert.Contains(t, out, "Price exceeds the maximum allowed price of 150.")
}

func TestCLI_Validation(t *testing.T) {
	cfg := startStack(t)

	_, err := run(t, cfg, "", "purchase", "--product", "Apple", "--price", "1")
	assert.ErrorContains(t, err, "--grantor")

	_, err = run(t, cfg, "", "purchase", "--grantor", "alice", "--approver", "magic", "--product", "Apple", "--price", "1")
	assert.ErrorContains(t, err, "unknown approver")

	_, err = run(t, cfg, "", "purchase", "--grantor", "alice", "--approver", "deny", "--product", "Apple")
	assert.ErrorContains(t, err, `"price"`)
}

func TestCLI_Prices(t *testing.T) {
	cfg := startStack(t)

	out, err := run(t, cfg, "", "prices", "--product", "Apple")
	require.NoError(t, err)
	assert.Contains(t, out, "King Fruits")
}

func TestCLI_PurchaseDecisionIsJournaled(t *testing.T) {
	cfg := startStack(t)
	core, logs := observer.New(zap.InfoLevel)

	root := NewRoot(cfg, zap.New(core))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"purchase", "--grantor", "alice", "--approver", "deny",
		"--product", "Laptop", "--price", "999"})
	require.NoError(t, root.Execute())

	// Сессия закрыта, журнал сброшен при остановке
	entries := logs.FilterMessage("action").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "agent", fields["source"])
	assert.Equal(t, "denied_by_user", fields["reason"])
	assert.Equal(t, false, fields["was_successful"])
}
