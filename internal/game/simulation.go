package game

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Simulation is one registered game instance. All access to the game goes
// through mu, so purchases, ticks and curve edits on the same simulation
// never interleave.
type Simulation struct {
	id         int
	modelIndex int
	model      string
	log        *slog.Logger
	obs        Observer
	notify     func(State)

	mu   sync.Mutex
	game Game
	keys map[string]struct{}
}

func newSimulation(id, modelIndex int, model string, g Game, logger *slog.Logger, obs Observer, notify func(State)) *Simulation {
	return &Simulation{
		id:         id,
		modelIndex: modelIndex,
		model:      model,
		log:        logger.With("simulation", id, "model", model),
		obs:        obs,
		notify:     notify,
		game:       g,
		keys:       make(map[string]struct{}),
	}
}

func (s *Simulation) ID() int         { return s.id }
func (s *Simulation) Model() string   { return s.model }
func (s *Simulation) ModelIndex() int { return s.modelIndex }

func (s *Simulation) Info() SimulationInfo {
	return SimulationInfo{ID: s.id, Model: s.model}
}

// guard runs fn under the simulation lock and turns a panic in model code
// into ErrInternal.
func (s *Simulation) guard(op string, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("model panic", "op", op, "panic", r)
			err = fmt.Errorf("%w: %s: %v", ErrInternal, op, r)
		}
	}()
	return fn()
}

func (s *Simulation) stateLocked() State {
	st := State{
		ID:       s.id,
		Model:    s.model,
		Money:    s.game.Money(),
		MoneyInc: s.game.MoneyInc(),
		MoneyDec: s.game.MoneyDec(),
		Time:     s.game.Time(),
		Levels:   s.game.Levels(),
	}
	if stats, err := s.game.Stats(); err == nil {
		st.Stats = &stats
	}
	return st
}

// State returns a snapshot. Stats is nil when the model cannot project them.
func (s *Simulation) State() (State, error) {
	var out State
	err := s.guard("state", func() error {
		out = s.stateLocked()
		return nil
	})
	return out, err
}

func (s *Simulation) Tick(delta float64) (State, error) {
	var out State
	err := s.guard("tick", func() error {
		if err := s.game.Tick(delta); err != nil {
			return err
		}
		out = s.stateLocked()
		s.notify(out)
		return nil
	})
	if err != nil {
		return State{}, err
	}
	s.obs.Ticked(s.model, delta)
	return out, nil
}

func (s *Simulation) KindNames() ([]string, error) {
	var out []string
	err := s.guard("kinds", func() error {
		out = s.game.KindNames()
		return nil
	})
	return out, err
}

func (s *Simulation) Choices() ([]Choice, error) {
	var out []Choice
	err := s.guard("choices", func() error {
		var err error
		out, err = s.game.AvailableChoices()
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Choice returns the available choice at position index.
func (s *Simulation) Choice(index int) (Choice, error) {
	choices, err := s.Choices()
	if err != nil {
		return Choice{}, err
	}
	if index < 0 || index >= len(choices) {
		return Choice{}, fmt.Errorf("%w: choice %d (have %d)", ErrOutOfRange, index, len(choices))
	}
	return choices[index], nil
}

// TryChoice applies c if it is still valid against live state. A non-empty
// key that already produced a purchase on this simulation is refused with
// ErrDuplicateIdempotency. An empty key is never recorded.
func (s *Simulation) TryChoice(key string, c Choice) (bool, State, error) {
	key = strings.TrimSpace(key)
	var (
		ok  bool
		out State
	)
	err := s.guard("try choice", func() error {
		if key != "" {
			if _, seen := s.keys[key]; seen {
				return fmt.Errorf("%w: %s", ErrDuplicateIdempotency, key)
			}
		}
		var err error
		ok, err = s.game.TryChoice(c)
		if err != nil {
			return err
		}
		if ok && key != "" {
			s.keys[key] = struct{}{}
		}
		out = s.stateLocked()
		if ok {
			s.notify(out)
		}
		return nil
	})
	if err != nil {
		return false, State{}, err
	}
	s.obs.ChoiceTried(s.model, ok)
	s.log.Debug("choice tried", "kind", c.Kind, "level", c.Level, "price", c.Price, "applied", ok)
	return ok, out, nil
}

func (s *Simulation) History() ([]Choice, error) {
	var out []Choice
	err := s.guard("history", func() error {
		out = s.game.ChoiceHistory()
		return nil
	})
	return out, err
}

func (s *Simulation) Curves() ([]CurveView, error) {
	var out []CurveView
	err := s.guard("curves", func() error {
		out = s.curvesLocked()
		return nil
	})
	return out, err
}

func (s *Simulation) curvesLocked() []CurveView {
	curves := s.game.Curves()
	names := s.game.KindNames()
	out := make([]CurveView, len(curves))
	for i, c := range curves {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		out[i] = c.View(i, name)
	}
	return out
}

func (s *Simulation) Curve(index int) (CurveView, error) {
	var out CurveView
	err := s.guard("curve", func() error {
		curves := s.curvesLocked()
		if index < 0 || index >= len(curves) {
			return fmt.Errorf("%w: curve %d (have %d)", ErrOutOfRange, index, len(curves))
		}
		out = curves[index]
		return nil
	})
	return out, err
}

func (s *Simulation) EditCurve(index int, edit CurveEdit) (CurveView, error) {
	var out CurveView
	err := s.guard("edit curve", func() error {
		if err := s.game.EditCurve(index, edit); err != nil {
			return err
		}
		out = s.curvesLocked()[index]
		s.notify(s.stateLocked())
		return nil
	})
	if err != nil {
		return CurveView{}, err
	}
	s.log.Info("curve edited", "curve", index, "max_level", out.MaxLevel)
	return out, nil
}
