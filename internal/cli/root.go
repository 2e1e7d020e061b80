package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xela07ax/agent-mandate/internal/agent"
	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/infra"
	"github.com/xela07ax/agent-mandate/internal/policy"
	"github.com/xela07ax/agent-mandate/internal/repository/postgres"
	"github.com/xela07ax/agent-mandate/internal/repository/redisstore"
	mandatev1 "github.com/xela07ax/agent-mandate/pkg/api/mandate/v1"
)

type options struct {
	grantor  string
	approver string
}

// NewRoot собирает CLI агента. Конфиг общий с сервисами (viper), флаги перекрывают его.
func NewRoot(cfg *infra.Config, logger *zap.Logger) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "agent",
		Short:         "Purchase agent constrained by user-issued mandates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.grantor, "grantor", "", "user whose mandates the agent acts under")
	root.PersistentFlags().StringVar(&opts.approver, "approver", "prompt", "approval for out-of-mandate purchases: deny|prompt|redis")

	root.AddCommand(newPurchaseCommand(cfg, opts, logger))
	root.AddCommand(newPricesCommand(cfg, opts, logger))
	return root
}

func newPurchaseCommand(cfg *infra.Config, opts *options, logger *zap.Logger) *cobra.Command {
	var (
		product  string
		quantity int64
		price    string
		currency string
	)

	cmd := &cobra.Command{
		Use:   "purchase",
		Short: "Purchase a product through the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.grantor == "" {
				return fmt.Errorf("--grantor is required")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			sess, err := newSession(ctx, cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			callArgs := agent.Arguments{"productName": product, "quantity": quantity, "price": price, "currency": currency}

			result, err := sess.invoker.Invoke(ctx, agent.Call{Tool: agent.ToolPurchaseProduct, Args: callArgs})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "product name")
	cmd.Flags().Int64Var(&quantity, "quantity", 1, "number of items")
	cmd.Flags().StringVar(&price, "price", "", "unit price the agent agreed to")
	cmd.Flags().StringVar(&currency, "currency", "", "currency of the price (USD, EUR)")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newPricesCommand(cfg *infra.Config, opts *options, logger *zap.Logger) *cobra.Command {
	var product string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "List manufacturer prices for a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := agent.NewPurchaseClient(cfg.Agent.GatewayURL, cfg.Agent.AccessToken, nil)
			inv := agent.NewInvoker(logger)
			inv.Register(agent.NewPricesTool(client))

			result, err := inv.Invoke(cmd.Context(), agent.Call{
				Tool: agent.ToolGetProductPrices,
				Args: agent.Arguments{"productName": product},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "product name")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

// session: собранный конвейер агента и ресурсы, которые надо закрыть.
type session struct {
	invoker *agent.Invoker
	closers []io.Closer
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

func newSession(ctx context.Context, cfg *infra.Config, opts *options, in io.Reader, out io.Writer, logger *zap.Logger) (*session, error) {
	sess := &session{}

	// 1. Мандаты пользователя, один раз на сессию, как их выдала консоль
	mandates, err := agent.NewMandateClient(cfg.Agent.ConsoleURL, cfg.Agent.AccessToken, nil).Mandates(ctx, opts.grantor)
	if err != nil {
		return nil, fmt.Errorf("failed to get user mandates: %w", err)
	}
	source := agent.StaticMandates(mandates)
	logger.Info("mandates loaded", zap.String("grantor", opts.grantor), zap.Int("count", len(mandates)))

	// 2. Валидатор: удаленный (та же версия вычислителя, что и на шлюзе) или локальный
	emptyPolicy, err := policy.ParseEmptyMandatePolicy(cfg.Engine.EmptyMandates)
	if err != nil {
		return nil, err
	}
	local := policy.NewLocalEnforcer(policy.NewEvaluator(policy.WithEmptyMandates(emptyPolicy)))

	var validator policy.Enforcer = local
	if cfg.Agent.GatewayGRPC != "" {
		conn, err := grpc.NewClient(cfg.Agent.GatewayGRPC, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to gateway gRPC: %w", err)
		}
		sess.closers = append(sess.closers, conn)
		validator = connectors.NewGRPCValidator(mandatev1.NewMandateEvaluationClient(conn), cfg.Agent.AccessToken)
	}

	// 3. Human-in-the-loop
	var approver agent.Approver
	switch opts.approver {
	case "deny":
		approver = agent.DenyApprover{}
	case "prompt":
		approver = agent.NewPromptApprover(in, out)
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		sess.closers = append(sess.closers, rdb)
		approver = agent.NewRedisApprover(rdb, redisstore.NewApprovalStore(rdb), cfg.Agent.ApprovalTimeout, logger)
	default:
		return nil, fmt.Errorf("unknown approver %q", opts.approver)
	}

	// 4. Журнал решений агента: Postgres, если настроен, иначе zap
	var storage audit.Storage = audit.NewLogStorage(logger)
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		sess.closers = append(sess.closers, db)
		storage = postgres.NewActionLogRepo(db)
	}
	recorder := audit.NewRecorder(storage, logger)
	recorder.Start()
	sess.closers = append(sess.closers, closerFunc(recorder.Stop))

	// 5. Инструменты за фильтром мандатов
	client := agent.NewPurchaseClient(cfg.Agent.GatewayURL, cfg.Agent.AccessToken, nil)

	var toolCheck policy.Enforcer
	if cfg.Agent.LocalValidation {
		toolCheck = local
	}

	sess.invoker = agent.NewInvoker(logger,
		agent.NewMandateFilter(cfg.Agent.ID, opts.grantor, source, validator, approver, recorder, logger),
	)
	sess.invoker.Register(
		agent.NewPurchaseTool(client, source, toolCheck),
		agent.NewPricesTool(client),
	)
	return sess, nil
}
