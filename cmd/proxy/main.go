package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/proxy"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadProxy()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.GoEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	e, err := proxy.New(cfg, logger)
	if err != nil {
		logger.Fatal("proxy setup failed", zap.Error(err))
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info("simple proxy listening",
			zap.String("addr", addr),
			zap.String("upstream", cfg.ProductsUpstream+"/api/v1/products"))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("proxy stopped", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return e.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	_ = logger.Sync()
	os.Exit(exitCode)
}
