package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"ledger_bot/internal/app"
	"ledger_bot/internal/config"
	"ledger_bot/internal/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.L().Fatalf("配置加载失败: %v", err)
	}

	logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("应用初始化失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Close(closeCtx); err != nil {
		logger.L().Errorf("关闭服务失败: %v", err)
	}

	if runErr != nil {
		logger.L().Fatalf("运行失败: %v", runErr)
	}
	logger.L().Info("Bye")
}
