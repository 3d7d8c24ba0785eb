package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tart/internal/config"
	"tart/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	sims    *game.Registry
	hub     *Hub
	metrics http.Handler
	mux     *chi.Mux
}

// New wires the routes and streams every state change in sims through hub.
// metricsHandler may be nil to leave /metrics unmounted. The stream route
// needs hub.Run to be active; a nil hub gets a private one that nobody runs,
// which is only fit for servers without streaming clients.
func New(cfg config.APIConfig, logger *slog.Logger, sims *game.Registry, hub *Hub, metricsHandler http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		sims:    sims,
		hub:     hub,
		metrics: metricsHandler,
		mux:     chi.NewRouter(),
	}
	sims.OnStateChange(func(st game.State) {
		hub.Publish(st.ID, Message{Type: "state", Payload: st})
	})
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "simulations": s.sims.Len()})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/simulations", s.handleSimulations)
		r.Post("/simulations", s.handleCreateSimulation)

		r.Route("/simulations/{id}", func(r chi.Router) {
			r.Get("/", s.handleState)
			r.Post("/tick", s.handleTick)
			r.Get("/kinds", s.handleKinds)
			r.Get("/choices", s.handleChoices)
			r.Post("/choices/try", s.handleTryChoice)
			r.Get("/choices/{index}", s.handleChoice)
			r.Get("/choices/{index}/kind", s.handleChoiceKind)
			r.Get("/history", s.handleHistory)
			r.Get("/curves", s.handleCurves)
			r.Get("/curves/{index}", s.handleCurve)
			r.Patch("/curves/{index}", s.handleEditCurve)
			r.Get("/stream", s.handleStream)
		})
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"models": s.sims.Models().Names()})
}

func (s *Server) handleSimulations(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"simulations": s.sims.List()})
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Model *int `json:"model"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Model == nil || *in.Model < 0 {
		writeError(w, http.StatusBadRequest, "model must be a non-negative model index")
		return
	}
	id, err := s.sims.Create(*in.Model)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	name, _ := s.sims.Models().Name(*in.Model)
	s.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "model": name})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	out, err := sim.State()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	var in struct {
		Delta *float64 `json:"delta"`
	}
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delta := s.cfg.DefaultTick
	if raw := r.URL.Query().Get("delta"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid delta")
			return
		}
		delta = v
	}
	if in.Delta != nil {
		delta = *in.Delta
	}
	out, err := sim.Tick(delta)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	kinds, err := sim.KindNames()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"kinds": kinds})
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	choices, err := sim.Choices()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"choices": choices})
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid choice index")
		return
	}
	choice, err := sim.Choice(index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, choice)
}

func (s *Server) handleChoiceKind(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid choice index")
		return
	}
	choice, err := sim.Choice(index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"index": index, "kind": choice.KindName})
}

func (s *Server) handleTryChoice(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	var in game.Choice
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := idempotencyKey(r)
	applied, out, err := sim.TryChoice(key, in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.log.Debug("choice attempt",
		"simulation", sim.ID(),
		"request", requestTag(r),
		"idempotency_key", key,
		"applied", applied,
	)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": applied, "state": out})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	history, err := sim.History()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleCurves(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	curves, err := sim.Curves()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"curves": curves})
}

func (s *Server) handleCurve(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid curve index")
		return
	}
	curve, err := sim.Curve(index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, curve)
}

func (s *Server) handleEditCurve(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid curve index")
		return
	}
	var in game.CurveEdit
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	curve, err := sim.EditCurve(index, in)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, curve)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.simulation(w, r)
	if !ok {
		return
	}
	state, err := sim.State()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.hub.Serve(w, r, sim.ID(), &Message{Type: "state", Payload: state})
}

func (s *Server) simulation(w http.ResponseWriter, r *http.Request) (*game.Simulation, bool) {
	id, err := pathIndex(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid simulation id")
		return nil, false
	}
	sim, err := s.sims.Get(id)
	if err != nil {
		s.writeDomainError(w, err)
		return nil, false
	}
	return sim, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrOutOfRange), errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrDuplicateIdempotency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathIndex parses a non-negative integer URL parameter.
func pathIndex(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body and leaves out untouched.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	if err := decodeJSON(r, out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeJSON encodes payload before touching the response, so a value that
// cannot be encoded becomes a logged 500 instead of an empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("encode response", "status", status, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeBody(w, status, raw)
}

func writeError(w http.ResponseWriter, status int, message string) {
	raw, _ := json.Marshal(map[string]string{"error": strings.TrimSpace(message)})
	writeBody(w, status, raw)
}

func writeBody(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(raw, '\n'))
}

// idempotencyKey returns the client's Idempotency-Key, or "" when absent.
// Keys are only remembered when the client sent one.
func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

// requestTag identifies a request in logs, falling back to a fresh id when
// no request id middleware ran.
func requestTag(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}
