// Package main wires together the markdown batching service binary.
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

	"go.uber.org/zap"

	"github.com/JakeFAU/md-batcher/internal/api"
	"github.com/JakeFAU/md-batcher/internal/archive"
	"github.com/JakeFAU/md-batcher/internal/clock/system"
	"github.com/JakeFAU/md-batcher/internal/config"
	"github.com/JakeFAU/md-batcher/internal/id/uuid"
	"github.com/JakeFAU/md-batcher/internal/logging"
	"github.com/JakeFAU/md-batcher/internal/metrics"
	"github.com/JakeFAU/md-batcher/internal/pipeline"
	"github.com/JakeFAU/md-batcher/internal/session"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	registry := session.NewRegistry(session.Config{
		Grace:         cfg.SessionGrace(),
		MaxAge:        cfg.SessionMaxAge(),
		SweepInterval: cfg.SessionSweep(),
		Clock:         system.New(),
		Logger:        logger.Named("session"),
	})
	reader := archive.NewReader(logger.Named("archive"))
	pipe := pipeline.New(reader, registry, logger.Named("pipeline"))
	idGen := uuid.New()

	apiServer := api.NewServer(pipe, registry, idGen, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	registry.Close()
	logger.Info("shutdown complete")
}
