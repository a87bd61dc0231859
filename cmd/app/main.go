package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token_swap/internal/api"
	"token_swap/internal/app"
	"token_swap/internal/event"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	pprofAddr := flag.String("pprof", "localhost:6060", "pprof listen address, empty to disable")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	event.Warmup()
	bootstrap := app.NewBootstrap(*configPath)
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config
	logger := bootstrap.Logger

	// 4. Sequencer (single writer). A halt stops the whole process.
	seqErr := make(chan error, 1)
	go func() { seqErr <- bootstrap.Sequencer.Run(ctx) }()

	if err := bootstrap.Seed(ctx); err != nil {
		logger.Error("Seeding failed", slog.Any("error", err))
		stop()
		<-bootstrap.Sequencer.Done()
		bootstrap.Close()
		os.Exit(1)
	}

	// 5. Background Asset Sync
	go bootstrap.SyncAssets(ctx)

	// 6. Rate Feed
	if bootstrap.RateFeed != nil {
		if err := bootstrap.RateFeed.Start(ctx); err != nil {
			logger.Error("Failed to start rate feed", slog.Any("error", err))
		}
		defer bootstrap.RateFeed.Stop()
	}

	// 7. Limiter housekeeping
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				bootstrap.Server.Limiter().Sweep()
			}
		}
	}()

	// 8. HTTP API
	srv := api.HTTPServer(cfg.HTTP.Listen, bootstrap.Server.Handler(),
		cfg.HTTP.ReadTimeout.Duration, cfg.HTTP.WriteTimeout.Duration)
	httpErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", slog.String("addr", cfg.HTTP.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	logger.Info("Token swap fully operational. Press Ctrl+C to exit.")

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-seqErr:
		logger.Error("Sequencer halted", slog.Any("error", err))
		exitCode = 1
	case err := <-httpErr:
		logger.Error("HTTP server failed", slog.Any("error", err))
		exitCode = 1
	}

	logger.Info("Shutting down gracefully...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", slog.Any("error", err))
	}
	<-bootstrap.Sequencer.Done()

	if exitCode != 0 {
		bootstrap.Close()
		os.Exit(exitCode)
	}
}
