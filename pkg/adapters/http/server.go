package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Fleet is the persisted side of the machines.
type Fleet interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, machineID string) (*domain.MachineConfig, error)
	SetInitialState(ctx context.Context, machineID, identity string) (*domain.MachineConfig, error)
}

// Loop is the live side: the goroutine that owns the running machines.
type Loop interface {
	Do(ctx context.Context, fn func() error) error
	Machine(id string) (*machine.Machine, bool)
	Machines() []string
}

// Server serves the inspection and control API.
type Server struct {
	Fleet    Fleet
	Loop     Loop
	Registry *registry.Registry
	Streams  *StreamManager
	Metrics  http.Handler
	Logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithRegistry sets the registry listed by /types and used to resolve transitions.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Server) {
		s.Registry = reg
	}
}

// WithStreams enables GET /machines/{id}/events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// MachineView is the JSON representation of a machine.
type MachineView struct {
	ID           string `json:"id"`
	Object       string `json:"object,omitempty"`
	InitialState string `json:"initial_state,omitempty"`
	Persisted    bool   `json:"persisted"`
	Attached     bool   `json:"attached"`
	State        string `json:"state,omitempty"`
	Phase        string `json:"phase,omitempty"`
}

// TypeView is the JSON representation of a registered variant.
type TypeView struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type typeRequest struct {
	Type string `json:"type"`
}

// NewHandler creates the HTTP handler.
func NewHandler(fleet Fleet, loop Loop, opts ...Option) http.Handler {
	s := &Server{
		Fleet:    fleet,
		Loop:     loop,
		Registry: registry.Default(),
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/types", s.ListTypes)
	r.Route("/machines", func(r chi.Router) {
		r.Get("/", s.ListMachines)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetMachine)
			r.Put("/initial-state", s.SetInitialState)
			r.Post("/transition", s.Transition)
			if s.Streams != nil {
				r.Get("/events", s.SubscribeEvents)
			}
		})
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTypes handles GET /types.
func (s *Server) ListTypes(w http.ResponseWriter, r *http.Request) {
	out := []TypeView{}
	for _, e := range machine.Variants(s.Registry) {
		out = append(out, TypeView{Identity: e.Identity, Name: e.Type.String()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ListMachines handles GET /machines. It merges persisted configs with
// machines that are only live.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Fleet.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range s.Loop.Machines() {
		if !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}

	out := make([]MachineView, 0, len(ids))
	for _, id := range ids {
		view, err := s.view(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrMachineNotFound) {
				continue // deleted between List and Load
			}
			s.writeError(w, err)
			return
		}
		out = append(out, *view)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GetMachine handles GET /machines/{id}.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	view, err := s.view(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// SetInitialState handles PUT /machines/{id}/initial-state.
func (s *Server) SetInitialState(w http.ResponseWriter, r *http.Request) {
	var body typeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		s.Logger.Warn("SetInitialState: Invalid request body", "err", err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.Fleet.SetInitialState(r.Context(), id, body.Type); err != nil {
		s.writeError(w, err)
		return
	}

	view, err := s.view(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// Transition handles POST /machines/{id}/transition. The transition runs on
// the loop goroutine.
func (s *Server) Transition(w http.ResponseWriter, r *http.Request) {
	var body typeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		s.Logger.Warn("Transition: Invalid request body", "err", err)
		return
	}

	e, ok := s.Registry.Lookup(body.Type)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %q", domain.ErrUnknownType, body.Type))
		return
	}

	id := chi.URLParam(r, "id")
	err := s.Loop.Do(r.Context(), func() error {
		m, ok := s.Loop.Machine(id)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrMachineNotFound, id)
		}
		_, err := m.BeginStateType(e.Type)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.Logger.Info("Transition requested", "machine_id", id, "to", e.Identity)

	view, err := s.view(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// SubscribeEvents handles GET /machines/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Debug("SSE: Client subscribed", "machine_id", id)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE: Client disconnected", "machine_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: transition\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// view combines the stored config and the live machine, if any.
func (s *Server) view(ctx context.Context, id string) (*MachineView, error) {
	view := &MachineView{ID: id}

	cfg, err := s.Fleet.Load(ctx, id)
	switch {
	case err == nil:
		view.Persisted = true
		view.Object = cfg.ObjectName()
		view.InitialState = cfg.InitialState.Identity()
	case !errors.Is(err, domain.ErrConfigNotFound):
		return nil, err
	}

	err = s.Loop.Do(ctx, func() error {
		m, ok := s.Loop.Machine(id)
		if !ok {
			return nil
		}
		view.Attached = true
		view.Object = m.Object().Name()
		view.State = m.StateIdentity()
		view.Phase = m.Phase().String()
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrDriverStopped) {
		return nil, err
	}

	if !view.Persisted && !view.Attached {
		return nil, fmt.Errorf("%w: %s", domain.ErrMachineNotFound, id)
	}
	return view, nil
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrMachineNotFound), errors.Is(err, domain.ErrConfigNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownType),
		errors.Is(err, domain.ErrNotAState),
		errors.Is(err, domain.ErrNotConstructible):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTornDown):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDriverStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("Request failed", "err", err)
	}
	s.writeJSON(w, status, errorBody(err.Error()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
