package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	cl "tart/internal/cli"
	"tart/internal/config"
	"tart/internal/game"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL
	sim := -1

	root := &cobra.Command{
		Use:          "tart",
		Short:        "Operator client for the tart simulation server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")
	root.PersistentFlags().IntVar(&sim, "sim", -1, "simulation id (defaults to the one selected with `use`)")

	root.AddCommand(
		newModelsCmd(&apiBase),
		newSimsCmd(&apiBase),
		newCreateCmd(&apiBase),
		newUseCmd(&apiBase),
		newStateCmd(&apiBase, &sim),
		newTickCmd(&apiBase, &sim),
		newKindsCmd(&apiBase, &sim),
		newChoicesCmd(&apiBase, &sim),
		newBuyCmd(&apiBase, &sim),
		newHistoryCmd(&apiBase, &sim),
		newCurvesCmd(&apiBase, &sim),
		newCurveCmd(&apiBase, &sim),
		newWatchCmd(&apiBase, &sim),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

// currentSim resolves --sim, falling back to the saved session.
func currentSim(sim *int) (int, error) {
	if *sim >= 0 {
		return *sim, nil
	}
	sess, err := cl.LoadSession()
	if err != nil {
		return 0, err
	}
	return sess.Simulation, nil
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func parseIndex(label, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", label, raw)
	}
	return n, nil
}

func newModelsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the game models the server can instantiate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			models, err := newClient(apiBase).Models(ctx)
			if err != nil {
				return err
			}
			renderModels(models)
			return nil
		},
	}
}

func newSimsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sims",
		Short: "List live simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			sims, err := newClient(apiBase).Simulations(ctx)
			if err != nil {
				return err
			}
			current := -1
			if sess, err := cl.LoadSession(); err == nil {
				current = sess.Simulation
			}
			renderSimulations(sims, current)
			return nil
		},
	}
}

func newCreateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <model>",
		Short: "Create a simulation from a model index or name and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			model, err := resolveModel(ctx, client, args[0])
			if err != nil {
				return err
			}
			created, err := client.CreateSimulation(ctx, model)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: client.BaseURL, Simulation: created.ID, Model: created.Model}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Simulation #%d created (%s) and selected.", created.ID, created.Model))
			return nil
		},
	}
}

func resolveModel(ctx context.Context, client *cl.Client, arg string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(arg)); err == nil {
		return n, nil
	}
	models, err := client.Models(ctx)
	if err != nil {
		return 0, err
	}
	index := slices.Index(models, strings.ToLower(strings.TrimSpace(arg)))
	if index < 0 {
		return 0, fmt.Errorf("unknown model %q (have %s)", arg, strings.Join(models, ", "))
	}
	return index, nil
}

func newUseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Select the simulation later commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIndex("simulation id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			st, err := client.State(ctx, id)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{APIBaseURL: client.BaseURL, Simulation: st.ID, Model: st.Model}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Using simulation #%d (%s).", st.ID, st.Model))
			return nil
		},
	}
}

func newStateCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show money, time and levels",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			st, err := newClient(apiBase).State(ctx, id)
			if err != nil {
				return err
			}
			renderState(st)
			return nil
		},
	}
}

func newTickCmd(apiBase *string, sim *int) *cobra.Command {
	var (
		delta float64
		times int
	)
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Advance simulated time",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			if times < 1 {
				return fmt.Errorf("--times must be >= 1")
			}
			var deltaArg *float64
			if cmd.Flags().Changed("delta") {
				deltaArg = &delta
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			var st game.State
			for range times {
				st, err = client.Tick(ctx, id, deltaArg)
				if err != nil {
					return err
				}
			}
			renderState(st)
			return nil
		},
	}
	cmd.Flags().Float64Var(&delta, "delta", 0, "seconds to advance (server default when unset)")
	cmd.Flags().IntVar(&times, "times", 1, "number of ticks to send")
	return cmd
}

func newKindsCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List upgrade kind names",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			kinds, err := newClient(apiBase).Kinds(ctx, id)
			if err != nil {
				return err
			}
			renderKinds(kinds)
			return nil
		},
	}
}

func newChoicesCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "choices",
		Short: "List upgrades that can be bought next",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			st, err := client.State(ctx, id)
			if err != nil {
				return err
			}
			choices, err := client.Choices(ctx, id)
			if err != nil {
				return err
			}
			renderChoices(choices, st.Money)
			return nil
		},
	}
}

func newBuyCmd(apiBase *string, sim *int) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "buy <choice-index>",
		Short: "Buy the upgrade at the given position of `choices`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			index, err := parseIndex("choice index", args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(key) == "" {
				key = uuid.NewString()
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			choice, err := client.Choice(ctx, id, index)
			if err != nil {
				return err
			}
			res, err := client.TryChoice(ctx, id, choice, key)
			if err != nil {
				return err
			}
			if !res.OK {
				printWarn(fmt.Sprintf("Could not buy %s level %d for %s (balance %s).",
					choice.KindName, choice.Level+1, formatMoney(choice.Price), formatMoney(res.State.Money)))
				return nil
			}
			printSuccess(fmt.Sprintf("Bought %s level %d for %s.", choice.KindName, choice.Level+1, formatMoney(choice.Price)))
			renderState(res.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (random when unset)")
	return cmd
}

func newHistoryCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show applied purchases in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			history, err := newClient(apiBase).History(ctx, id)
			if err != nil {
				return err
			}
			renderHistory(history)
			return nil
		},
	}
}

func newCurvesCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "curves",
		Short: "Show every upgrade curve",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			curves, err := newClient(apiBase).Curves(ctx, id)
			if err != nil {
				return err
			}
			renderCurves(curves)
			return nil
		},
	}
}

func newCurveCmd(apiBase *string, sim *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Inspect or edit one upgrade curve",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <index>",
			Short: "Show one curve",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := currentSim(sim)
				if err != nil {
					return err
				}
				index, err := parseIndex("curve index", args[0])
				if err != nil {
					return err
				}
				ctx, cancel := requestContext(cmd)
				defer cancel()
				curve, err := newClient(apiBase).Curve(ctx, id, index)
				if err != nil {
					return err
				}
				renderCurve(curve)
				return nil
			},
		},
		newCurveEditCmd(apiBase, sim),
	)
	return cmd
}

func newCurveEditCmd(apiBase *string, sim *int) *cobra.Command {
	var (
		maxLevel int
		prices   []string
		values   []string
	)
	cmd := &cobra.Command{
		Use:     "edit <index>",
		Short:   "Change max level, prices or values of a curve",
		Example: "  tart curve edit 0 --max-level 5 --price 0=10 --price 1=25 --value 1=2.5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			index, err := parseIndex("curve index", args[0])
			if err != nil {
				return err
			}
			var edit game.CurveEdit
			if cmd.Flags().Changed("max-level") {
				edit.MaxLevel = &maxLevel
			}
			if edit.Prices, err = parseLevelValues(prices); err != nil {
				return fmt.Errorf("--price: %w", err)
			}
			if edit.Values, err = parseLevelValues(values); err != nil {
				return fmt.Errorf("--value: %w", err)
			}
			if edit.MaxLevel == nil && edit.Prices == nil && edit.Values == nil {
				return fmt.Errorf("nothing to edit; pass --max-level, --price or --value")
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			curve, err := newClient(apiBase).EditCurve(ctx, id, index, edit)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Curve %d (%s) updated.", curve.Index, curve.Name))
			renderCurve(curve)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max-level", 1, "new max level")
	cmd.Flags().StringArrayVar(&prices, "price", nil, "level=price, repeatable")
	cmd.Flags().StringArrayVar(&values, "value", nil, "level=value, repeatable")
	return cmd
}

// parseLevelValues turns "level=value" pairs into an edit map. Nil in, nil out.
func parseLevelValues(pairs []string) (map[int]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]float64, len(pairs))
	for _, p := range pairs {
		level, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("expected level=value, got %q", p)
		}
		l, err := strconv.Atoi(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("invalid level in %q", p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q", p)
		}
		out[l] = v
	}
	return out, nil
}

func newWatchCmd(apiBase *string, sim *int) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream state updates until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := currentSim(sim)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			printInfo(fmt.Sprintf("Watching simulation #%d (ctrl-c to stop)", id))
			return newClient(apiBase).Watch(ctx, id, func(m cl.StreamMessage) error {
				if m.Type != "state" {
					return nil
				}
				var st game.State
				if err := json.Unmarshal(m.Payload, &st); err != nil {
					return err
				}
				renderStateLine(st)
				return nil
			})
		},
	}
}
