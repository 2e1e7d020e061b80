package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xela07ax/agent-mandate/internal/audit"
	"github.com/xela07ax/agent-mandate/internal/connectors"
	"github.com/xela07ax/agent-mandate/internal/engine"
	"github.com/xela07ax/agent-mandate/internal/infra"
	"github.com/xela07ax/agent-mandate/internal/infra/auth"
	"github.com/xela07ax/agent-mandate/internal/policy"
	"github.com/xela07ax/agent-mandate/internal/repository/postgres"
	mandatev1 "github.com/xela07ax/agent-mandate/pkg/api/mandate/v1"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway stopped with error", zap.Error(err))
	}
	logger.Info("gateway exited properly")
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст жизни приложения: SIGINT/SIGTERM останавливают слушателей и серверы
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	db, err := postgres.Open(appCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		return err
	}
	validator := auth.NewBaseValidator(pubKey)

	emptyPolicy, err := policy.ParseEmptyMandatePolicy(cfg.Engine.EmptyMandates)
	if err != nil {
		return err
	}

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Журнал действий: данные полетят в базу пачками
	recorder := audit.NewRecorder(postgres.NewActionLogRepo(db), logger,
		audit.WithBufferSize(cfg.Engine.AuditBufferSize),
		audit.WithFlushInterval(cfg.Engine.AuditFlushInterval),
		audit.WithBufferGauge(metrics.AuditBufferFill),
	)
	recorder.Start()
	defer recorder.Stop()

	// 4. Control Plane: отзыв мандатов
	revocations := engine.NewRevocationManager(rdb, postgres.NewMandateRepo(db), logger)
	if err := revocations.Init(appCtx); err != nil {
		return err
	}

	// 5. Execution Layer: поставщик за Rate Limiter / Circuit Breaker / Retries
	provider := engine.NewReliabilityWrapper(&connectors.MockStore{MaxLatency: 200 * time.Millisecond}, cfg.Engine, metrics, logger)

	// 6. Core
	gateway := engine.NewPurchaseGateway(
		policy.NewEvaluator(policy.WithEmptyMandates(emptyPolicy)),
		recorder,
		provider,
		revocations,
		metrics,
		logger,
	)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine.NewHTTPServer(gateway, validator, cfg.Auth.RequiredScopes, metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(engine.UnaryAuthInterceptor(validator, cfg.Auth.RequiredScopes, logger)))
	mandatev1.RegisterMandateEvaluationServer(grpcSrv, engine.NewGRPCEvaluationServer(gateway, logger))

	logger.Info("gateway starting",
		zap.String("http", httpSrv.Addr),
		zap.String("grpc", cfg.GRPC.Addr),
		zap.String("metrics", metricsSrv.Addr),
		zap.String("empty_mandates", emptyPolicy.String()))

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		revocations.StartListener(groupCtx)
		return nil
	})

	group.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		return grpcSrv.Serve(lis)
	})

	// Graceful Shutdown: ждем сигнал или падение любого из серверов
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("gateway stopping...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		grpcSrv.GracefulStop()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
