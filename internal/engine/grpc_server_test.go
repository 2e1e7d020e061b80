package engine

import (
	"context"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/domain"
	mandatev1 "github.com/xela07ax/agent-mandate/pkg/api/mandate/v1"
)

// startEvaluationServer поднимает gRPC-сервер шлюза в памяти и возвращает клиента.
func startEvaluationServer(t *testing.T, rev RevocationChecker) mandatev1.MandateEvaluationClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gw := NewPurchaseGateway(nil, nil, &fakeProvider{}, rev, nil, zap.NewNop())

	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryAuthInterceptor(staticValidator{}, []string{"purchase.write"}, zap.NewNop())))
	mandatev1.RegisterMandateEvaluationServer(srv, NewGRPCEvaluationServer(gw, zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return mandatev1.NewMandateEvaluationClient(conn)
}

func TestGRPC_EvaluateThroughValidator(t *testing.T) {
	client := startEvaluationServer(t, nil)
	v := connectors.NewGRPCValidator(client, "writer")

	mandates := []domain.Mandate{testMandate("m1", maxPriceCond("c1", "150"), maxQuantityCond("c2", 100))}

	res, err := v.Authorize(context.Background(), mandates,
		domain.ProposedAction{Action: domain.ActionPurchase, Price: decimal.NewFromInt(150), Quantity: 100})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Authorize(context.Background(), mandates,
		domain.ProposedAction{Action: domain.ActionPurchase, Price: decimal.NewFromInt(10), Quantity: 101})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonQuantityExceeded, res.Reason)
	assert.Equal(t, "c2", res.ConditionID)
}

func TestGRPC_AuthInterceptor(t *testing.T) {
	client := startEvaluationServer(t, nil)
	req := &mandatev1.EvaluateRequest{Mandates: []domain.Mandate{}, Action: domain.ProposedAction{Action: domain.ActionPurchase}}
	in, err := req.ToStruct()
	require.NoError(t, err)

	_, err = client.Evaluate(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = connectors.NewGRPCValidator(client, "reader").Authorize(context.Background(), nil, req.Action)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPC_MalformedAndRevoked(t *testing.T) {
	client := startEvaluationServer(t, revokedSet{"m1": true})
	ctx := withToken(context.Background(), "writer")

	// Нет списка мандатов, не "разрешено", а ошибка разбора
	in, err := structpb.NewStruct(map[string]interface{}{"action": map[string]interface{}{"action": "Purchase"}})
	require.NoError(t, err)
	_, err = client.Evaluate(ctx, in)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = connectors.NewGRPCValidator(client, "writer").Authorize(context.Background(),
		[]domain.Mandate{testMandate("m1")},
		domain.ProposedAction{Action: domain.ActionPurchase, Price: decimal.NewFromInt(1), Quantity: 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// Действие без цены нельзя сверить с MaxPrice
	noPrice, err := structpb.NewStruct(map[string]interface{}{
		"mandates": []interface{}{},
		"action":   map[string]interface{}{"action": "Purchase", "quantity": "1"},
	})
	require.NoError(t, err)
	_, err = client.Evaluate(ctx, noPrice)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
