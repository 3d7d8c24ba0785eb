package game

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Observer receives engine activity. Implementations must be safe for
// concurrent use.
type Observer interface {
	SimulationCreated(model string)
	Ticked(model string, delta float64)
	ChoiceTried(model string, applied bool)
}

type nopObserver struct{}

func (nopObserver) SimulationCreated(string) {}
func (nopObserver) Ticked(string, float64)   {}
func (nopObserver) ChoiceTried(string, bool) {}

// StateListener receives the state produced by every tick, applied purchase
// and curve edit. It runs while the simulation is locked, so calls for one
// simulation arrive in mutation order. It must not block or call back into
// the simulation.
type StateListener func(State)

// Registry owns every live simulation. Ids are dense positions in creation
// order and are never reused.
type Registry struct {
	models *Models
	log    *slog.Logger
	obs    Observer

	listener atomic.Pointer[StateListener]

	mu   sync.RWMutex
	sims []*Simulation
}

func NewRegistry(models *Models, logger *slog.Logger, obs Observer) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Registry{
		models: models,
		log:    logger,
		obs:    obs,
	}
}

// OnStateChange installs fn for every current and future simulation,
// replacing any earlier listener. A nil fn removes it.
func (r *Registry) OnStateChange(fn StateListener) {
	if fn == nil {
		r.listener.Store(nil)
		return
	}
	r.listener.Store(&fn)
}

func (r *Registry) notify(st State) {
	if fn := r.listener.Load(); fn != nil {
		(*fn)(st)
	}
}

func (r *Registry) Models() *Models {
	return r.models
}

// Create instantiates the model at modelIndex and returns the new id.
// Construction happens outside the lock; only the append is serialized.
func (r *Registry) Create(modelIndex int) (int, error) {
	g, err := r.models.Instantiate(modelIndex)
	if err != nil {
		return 0, err
	}
	name, _ := r.models.Name(modelIndex)

	r.mu.Lock()
	id := len(r.sims)
	r.sims = append(r.sims, newSimulation(id, modelIndex, name, g, r.log, r.obs, r.notify))
	r.mu.Unlock()

	r.obs.SimulationCreated(name)
	r.log.Info("simulation created", "id", id, "model", name)
	return id, nil
}

func (r *Registry) Get(id int) (*Simulation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.sims) {
		return nil, fmt.Errorf("%w: simulation %d (have %d)", ErrOutOfRange, id, len(r.sims))
	}
	return r.sims[id], nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sims)
}

func (r *Registry) List() []SimulationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SimulationInfo, len(r.sims))
	for i, s := range r.sims {
		out[i] = s.Info()
	}
	return out
}
