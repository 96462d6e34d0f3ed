package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"forestclient/internal/platform/config"
	"forestclient/internal/platform/httpserver"
	"forestclient/internal/platform/logger"
	"forestclient/internal/reminder"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("processor exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	job := reminder.New(deps.submissions, deps.orchestrator.Notifier(),
		reminder.WithOlderThan(cfg.Reminder.OlderThan),
		reminder.WithLogger(log),
	)
	if err := job.Start(cfg.Reminder.Schedule); err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server.Addr, newRouter(cfg, log, deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.orchestrator.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting forest client processor", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		job.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
