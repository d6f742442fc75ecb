package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextlevelbuilder/mcpbridge/internal/bridge"
	"github.com/nextlevelbuilder/mcpbridge/internal/config"
	"github.com/nextlevelbuilder/mcpbridge/internal/telemetry"
)

// shutdownTimeout bounds graceful teardown of every Service and Endpoint.
const shutdownTimeout = 15 * time.Second

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	file, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	shutdownMetrics, err := telemetry.InitProvider(context.Background())
	if err != nil {
		slog.Error("failed to init telemetry provider", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics(context.Background())

	metricsSrv := &http.Server{Addr: ":9090", Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics server error", "error", err)
		}
	}()

	b := bridge.New()
	if err := b.Initialize(context.Background(), file); err != nil {
		slog.Error("bridge initialization error", "error", err)
	}

	watcher, err := config.NewWatcher(cfgPath, func(updated *config.File) {
		slog.Info("config change detected, applying endpoint delta", "path", cfgPath)
		if err := b.ApplyConfigDelta(context.Background(), updated); err != nil {
			slog.Warn("config delta apply failed", "error", err)
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "path", cfgPath, "error", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("mcpbridge started",
		"version", version,
		"services", len(file.Services),
		"endpoints", len(file.Endpoints),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = metricsSrv.Shutdown(shutdownCtx)
	b.Reset(shutdownCtx)

	slog.Info("mcpbridge stopped")
}
