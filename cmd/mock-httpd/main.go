// Package main runs a stand-in radicle-httpd seed node that serves a YAML
// fixture. Point radicle.seedURL at it for local development and e2e runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/httpmw"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
	"github.com/bordumb/RadicleApp/internal/seedmock"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8778", "listen address")
	fixture := flag.String("fixture", "internal/radicle/testdata/heartwood.yaml", "YAML fixture to serve")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log, err := logger.NewLogger(logger.LoggingConfig{Level: *level, Format: "text", OutputPath: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mock-httpd: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	mock, err := radicle.LoadFixtureFile(*fixture)
	if err != nil {
		log.Fatal("Failed to load fixture", zap.String("fixture", *fixture), zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), httpmw.RequestLogger(log, "mock-httpd"))
	seedmock.RegisterRoutes(router, mock, log)

	server := &http.Server{Addr: *addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("mock seed node listening", zap.String("addr", *addr), zap.String("fixture", *fixture))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
}
