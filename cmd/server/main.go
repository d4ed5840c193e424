package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	webAdapter "stock-ledger/internal/adapters/web"
	"stock-ledger/internal/app"
	"stock-ledger/internal/config"
	"stock-ledger/internal/observability"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("server: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		log.Info("tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	rt, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer rt.Close()

	opts := webAdapter.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		JWTSecret:      cfg.HTTP.JWTSecret,
		Logger:         log,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = rt.Metrics.Handler()
	}
	if cfg.HTTP.JWTSecret == "" {
		log.Warn("http.jwt_secret is not set, write routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           webAdapter.NewHandler(rt.Service, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Info("server starting", zap.String("addr", cfg.HTTP.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("graceful shutdown complete")
	return nil
}
