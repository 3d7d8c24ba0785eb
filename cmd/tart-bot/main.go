package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tart/internal/bot"
	"tart/internal/cli"
	"tart/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	b := bot.New(cli.NewClient(cfg.APIBaseURL), cfg, logger)

	attachCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = b.Attach(attachCtx)
	cancel()
	if err != nil {
		logger.Error("attach failed", "err", err)
		os.Exit(1)
	}

	runOnce := strings.EqualFold(strings.TrimSpace(os.Getenv("TART_BOT_RUN_ONCE")), "true")
	if runOnce {
		if _, err := b.Step(ctx); err != nil {
			logger.Error("step failed", "err", err)
			os.Exit(1)
		}
		logger.Info("bot run-once completed", "simulation", b.Simulation())
		return
	}

	ticker := time.NewTicker(cfg.TickEvery)
	defer ticker.Stop()

	logger.Info("bot started", "simulation", b.Simulation(), "tick_every", cfg.TickEvery.String(), "delta", cfg.Delta)
	for {
		select {
		case <-ctx.Done():
			logger.Info("bot shutdown")
			return
		case <-ticker.C:
			res, err := b.Step(ctx)
			if err != nil {
				logger.Error("step failed", "err", err)
				continue
			}
			logger.Debug("step complete", "money", res.State.Money, "time", res.State.Time, "bought", res.Bought != nil)
		}
	}
}
