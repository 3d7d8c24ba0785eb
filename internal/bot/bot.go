// Package bot drives a simulation through the HTTP API: every step it ticks
// the simulation and buys the cheapest upgrade the balance covers.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"tart/internal/cli"
	"tart/internal/config"
	"tart/internal/game"

	"github.com/google/uuid"
)

type Bot struct {
	client *cli.Client
	cfg    config.BotConfig
	log    *slog.Logger
	sim    int
}

type StepResult struct {
	State  game.State
	Bought *game.Choice
}

func New(client *cli.Client, cfg config.BotConfig, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{client: client, cfg: cfg, log: logger, sim: cfg.Simulation}
}

func (b *Bot) Simulation() int {
	return b.sim
}

// Attach creates a simulation of the configured model when none was given,
// otherwise checks the configured one exists.
func (b *Bot) Attach(ctx context.Context) error {
	if b.sim >= 0 {
		st, err := b.client.State(ctx, b.sim)
		if err != nil {
			return fmt.Errorf("attach simulation %d: %w", b.sim, err)
		}
		b.log.Info("bot attached", "simulation", st.ID, "model", st.Model)
		return nil
	}
	created, err := b.client.CreateSimulation(ctx, b.cfg.Model)
	if err != nil {
		return fmt.Errorf("create simulation: %w", err)
	}
	b.sim = created.ID
	b.log.Info("bot created simulation", "simulation", created.ID, "model", created.Model)
	return nil
}

func (b *Bot) Step(ctx context.Context) (StepResult, error) {
	delta := b.cfg.Delta
	st, err := b.client.Tick(ctx, b.sim, &delta)
	if err != nil {
		return StepResult{}, fmt.Errorf("tick: %w", err)
	}
	choices, err := b.client.Choices(ctx, b.sim)
	if err != nil {
		return StepResult{State: st}, fmt.Errorf("choices: %w", err)
	}
	pick, ok := Cheapest(choices, st.Money)
	if !ok {
		return StepResult{State: st}, nil
	}
	res, err := b.client.TryChoice(ctx, b.sim, pick, uuid.NewString())
	if err != nil {
		return StepResult{State: st}, fmt.Errorf("buy %s: %w", pick.KindName, err)
	}
	if !res.OK {
		b.log.Debug("purchase refused", "kind", pick.KindName, "level", pick.Level, "price", pick.Price)
		return StepResult{State: res.State}, nil
	}
	b.log.Info("purchased upgrade", "kind", pick.KindName, "level", pick.Level+1, "price", pick.Price, "money", res.State.Money)
	return StepResult{State: res.State, Bought: &pick}, nil
}

// Cheapest returns the lowest-priced choice not above money. Ties keep the
// earlier choice.
func Cheapest(choices []game.Choice, money float64) (game.Choice, bool) {
	best := -1
	for i, c := range choices {
		if c.Price > money {
			continue
		}
		if best < 0 || c.Price < choices[best].Price {
			best = i
		}
	}
	if best < 0 {
		return game.Choice{}, false
	}
	return choices[best], true
}
