package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/agent-mandate/internal/console/handler"
	"github.com/xela07ax/agent-mandate/internal/console/server"
	"github.com/xela07ax/agent-mandate/internal/console/service"
	"github.com/xela07ax/agent-mandate/internal/infra"
	"github.com/xela07ax/agent-mandate/internal/infra/auth"
	"github.com/xela07ax/agent-mandate/internal/policy"
	"github.com/xela07ax/agent-mandate/internal/repository/postgres"
	"github.com/xela07ax/agent-mandate/internal/repository/redisstore"
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
		logger.Fatal("console stopped with error", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Инициализация ресурсов
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

	// 2. Кэш мандатов: холодная загрузка + подписка на обновления
	mandateRepo := postgres.NewMandateRepo(db)
	cache := policy.NewMandateCache(mandateRepo, rdb, logger)
	if err := cache.Refresh(appCtx); err != nil {
		return err
	}

	// 3. Инициализация слоев (Dependency Injection)
	actionLogs := postgres.NewActionLogRepo(db)
	srv := server.NewConsoleServer(
		logger,
		auth.NewBaseValidator(pubKey),
		handler.NewMandateHandler(service.NewMandateService(mandateRepo, cache, rdb, logger)),
		handler.NewApprovalHandler(service.NewApprovalService(redisstore.NewApprovalStore(rdb), logger)),
		handler.NewDashboardHandler(service.NewDashboardService(actionLogs)),
		handler.NewAuditHandler(service.NewAuditService(actionLogs)),
	)

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		cache.StartListener(groupCtx)
		return nil
	})

	group.Go(func() error {
		logger.Info("console API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
