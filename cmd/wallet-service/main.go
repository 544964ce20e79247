package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/order-saga/internal/pkg/auth"
	"github.com/jcmexdev/order-saga/internal/pkg/config"
	"github.com/jcmexdev/order-saga/internal/pkg/telemetry"
	"github.com/jcmexdev/order-saga/internal/wallet-service/app"
	"github.com/jcmexdev/order-saga/internal/wallet-service/httpx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadStub("WALLET", "wallet-service", "8082")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.LogLevel)
	if cfg.JWTKey == "" {
		slog.Error("JWT_KEY is required")
		os.Exit(1)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.OTel.Enabled, cfg.OTel.ServiceName, cfg.OTel.Endpoint)
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.NewRouter(httpx.NewHandler(app.NewWallets()), auth.NewVerifier(cfg.JWTKey)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	slog.Info("wallet service HTTP running", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}
