package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-mandate/internal/cli"
	"github.com/xela07ax/agent-mandate/internal/infra"
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

	if err := cli.NewRoot(cfg, logger).Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
