// Package main is the entry point for the Radicle browser backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/browser/service"
	"github.com/bordumb/RadicleApp/internal/common/config"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/events"
	gateways "github.com/bordumb/RadicleApp/internal/gateway/websocket"
	"github.com/bordumb/RadicleApp/internal/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "radicle-browser: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	log.Info("Starting radicle browser", zap.String("seed", cfg.Radicle.SeedURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	tracing.Init(cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// 4. Event bus
	eventBus, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer closeBus()

	// 5. Seed client, cache and content fetcher
	client, fetcher, cleanup, err := provideClients(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// 6. Browser service and notification hub
	svc := service.NewService(client, fetcher, eventBus, log)
	defer svc.Close()

	hub := gateways.NewHub(log)
	if err := hub.Listen(eventBus); err != nil {
		return err
	}
	go hub.Run(ctx)

	// 7. HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(cfg, svc, hub, eventBus, log),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutting down radicle browser...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("radicle browser stopped")
	return nil
}
