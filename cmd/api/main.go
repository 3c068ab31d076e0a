package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/infra/db"
	"storefront/internal/logging"
	"storefront/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Base().Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.Init("storefront-api", cfg.LogFile, cfg.LogLevel)

	app, cleanup, err := bootstrap.InitWithConfig(cfg)
	if err != nil {
		log.Error("init app", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	//開発時だけ起動時にマイグレーション（本番はpaygatectl migrate）
	if !cfg.IsProduction() {
		if err := db.Migrate(app.DB); err != nil {
			log.Error("migrate", "err", err)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.Port, "env", cfg.GoEnv, "provider", cfg.PaymentProvider)
		errCh <- server.Start(app.Echo, ":"+cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped", "err", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		if err := server.Shutdown(app.Echo, 10*time.Second); err != nil {
			log.Error("shutdown", "err", err)
		}
	}
}
