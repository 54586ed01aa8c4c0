package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/infra/db"
	"storefront/internal/logging"
	"storefront/internal/server"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}
	if cfg.SeedDemo {
		n, err := db.Seed(context.Background(), gormDB)
		if err != nil {
			logger.Fatal("seed failed", zap.Error(err))
		}
		logger.Info("demo products seeded", zap.Int("count", n))
	}

	//Server起動
	e := server.New(cfg, gormDB, logger)
	addr := ":" + cfg.Port
	go func() {
		logger.Info("api listening", zap.String("addr", addr), zap.String("env", cfg.GoEnv))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			// 処理中のリクエストを流し切ってからDBを閉じる
			"http": func(ctx context.Context) error {
				if err := e.Shutdown(ctx); err != nil {
					return err
				}
				sqlDB, err := gormDB.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("api exited", zap.Int("code", exitCode))
	_ = logger.Sync()
	os.Exit(exitCode)
}
