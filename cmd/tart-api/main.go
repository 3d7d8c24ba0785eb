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

	"tart/internal/api"
	"tart/internal/config"
	"tart/internal/game"
	"tart/internal/metrics"
	"tart/internal/preset"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	var presets *preset.File
	if cfg.CurvesFile != "" {
		presets, err = preset.Load(cfg.CurvesFile)
		if err != nil {
			logger.Error("load curve presets failed", "path", cfg.CurvesFile, "err", err)
			os.Exit(1)
		}
	}
	models := game.DefaultModels(cfg.PortLanes, presets.Apply)
	if err := presets.Validate(models); err != nil {
		logger.Error("curve presets invalid", "path", cfg.CurvesFile, "err", err)
		os.Exit(1)
	}

	var (
		observer       game.Observer
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		observer = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	sims := game.NewRegistry(models, logger, observer)
	for _, model := range cfg.SeedSimulations {
		if _, err := sims.Create(model); err != nil {
			logger.Error("seed simulation failed", "model", model, "err", err)
			os.Exit(1)
		}
	}

	hub := api.NewHub(logger)
	server := api.New(cfg, logger, sims, hub, metricsHandler)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("tart api listening", "addr", cfg.Addr, "models", models.Names())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("tart api stopped")
}
