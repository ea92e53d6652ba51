package machine

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/host"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/aretw0/stagehand/pkg/typeref"
)

// Phase is the lifecycle of a Machine.
type Phase int

const (
	Uninitialized Phase = iota
	Running
	TornDown
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case TornDown:
		return "torn_down"
	}
	return "unknown"
}

// Machine owns exactly one active State and runs the transition protocol.
// It is not safe for concurrent use: all calls, including the hooks they
// trigger, must happen on the goroutine driving the machine.
type Machine struct {
	// InitialState selects the variant installed by Start.
	InitialState typeref.TypeRef

	id       string
	object   *host.Object
	registry *registry.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time

	state State
	phase Phase

	// exiting counts OnExit calls in flight; transitions requested during
	// one are queued in pending until the outer transition commits.
	exiting int
	pending []State
}

// Option configures a Machine.
type Option func(*Machine)

// WithID sets the machine ID used in logs and events.
func WithID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithInitialState configures the startup variant.
func WithInitialState(ref typeref.TypeRef) Option {
	return func(m *Machine) {
		m.InitialState = ref
	}
}

// WithObject attaches the machine to an existing host object.
func WithObject(obj *host.Object) Option {
	return func(m *Machine) {
		m.object = obj
	}
}

// WithRegistry sets the registry used to resolve and construct variants.
func WithRegistry(reg *registry.Registry) Option {
	return func(m *Machine) {
		m.registry = reg
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates an uninitialized machine. Call Start to install a state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		registry: registry.Default(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.object == nil {
		m.object = host.NewObject(m.id)
	}
	if m.id != "" {
		m.logger = m.logger.With("machine_id", m.id)
	}
	return m
}

// ID returns the machine ID.
func (m *Machine) ID() string {
	return m.id
}

// Object returns the host object the machine is attached to.
func (m *Machine) Object() *host.Object {
	return m.object
}

// Registry returns the registry used to resolve variants.
func (m *Machine) Registry() *registry.Registry {
	return m.registry
}

// State returns the active state, or nil before Start and after Destroy.
func (m *Machine) State() State {
	return m.state
}

// StateIdentity returns the type identity of the active state, or "" if none.
func (m *Machine) StateIdentity() string {
	return identityOf(m.state)
}

// Phase returns the lifecycle phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// IsActive reports whether s is the active state. A state that was replaced
// keeps its back-reference, so it should check this before acting on it.
func (m *Machine) IsActive(s State) bool {
	return s != nil && m.state == s
}

// Start installs the default state, then replaces it with InitialState if
// that resolves to a constructible variant. Resolution failures leave the
// machine in the default state. Start on a started machine is a no-op.
func (m *Machine) Start() {
	if m.phase != Uninitialized {
		return
	}

	def := NewState[Default]()
	def.attach(m)
	m.state = def
	m.phase = Running
	m.emit(domain.EventStateEnter, "", identityOf(def))
	def.OnEnter()

	if m.InitialState.IsZero() {
		return
	}

	t := m.InitialState.Resolve(m.registry)
	if t == nil {
		m.logger.Warn("Initial state type did not resolve, staying in default state",
			"initial_state", m.InitialState.Identity(),
		)
		return
	}

	next, err := ConstructFrom(m.registry, t)
	if err != nil {
		m.logger.Warn("Initial state could not be constructed, staying in default state",
			"initial_state", m.InitialState.Identity(),
			"err", err,
		)
		return
	}
	m.BeginState(next)
}

// BeginState replaces the active state with next and returns next.
//
// The old state's OnExit(next) runs while it is still active and strictly
// before the swap; next.OnEnter runs after it. A nil next installs a fresh
// Default. A transition requested from inside an OnExit is queued and runs
// once the in-flight transition has committed.
//
// BeginState panics with domain.ErrNotStarted before Start. After Destroy
// it does nothing and returns nil.
func (m *Machine) BeginState(next State) State {
	switch m.phase {
	case Uninitialized:
		panic(domain.ErrNotStarted)
	case TornDown:
		m.logger.Warn("Transition requested on torn down machine, ignoring",
			"to", identityOf(next),
		)
		return nil
	}

	if next == nil {
		next = NewState[Default]()
	}

	if m.exiting > 0 {
		m.pending = append(m.pending, next)
		return next
	}

	m.transition(next)
	m.drain()
	return next
}

// BeginStateType constructs a state from t and transitions to it.
// Construction failures are returned and the active state is kept. On a torn
// down machine it returns domain.ErrTornDown.
func (m *Machine) BeginStateType(t reflect.Type) (State, error) {
	if m.phase == TornDown {
		return nil, fmt.Errorf("%w: %s", domain.ErrTornDown, m.id)
	}
	next, err := ConstructFrom(m.registry, t)
	if err != nil {
		return nil, err
	}
	return m.BeginState(next), nil
}

// BeginState transitions m to a fresh *T.
func BeginState[T any, PT interface {
	*T
	State
}](m *Machine) PT {
	next := NewState[T, PT]()
	if m.BeginState(next) == nil {
		return nil
	}
	return next
}

// IsInState reports whether the active state's dynamic type is exactly T.
func IsInState[T State](m *Machine) bool {
	return m.state != nil && reflect.TypeOf(m.state) == reflect.TypeFor[T]()
}

// Update forwards the variable-rate callback to the active state.
func (m *Machine) Update() {
	m.active().Update()
}

// FixedUpdate forwards the fixed-rate callback to the active state.
func (m *Machine) FixedUpdate() {
	m.active().FixedUpdate()
}

// Destroy signals the active state that the machine is going away by calling
// OnExit(nil), followed by OnDestroy for states implementing Terminator.
// A machine that never started tears down silently.
func (m *Machine) Destroy() {
	if m.phase == TornDown {
		return
	}
	m.phase = TornDown
	m.pending = nil

	last := m.state
	if last == nil {
		return
	}

	// Inside an OnExit the state is already being told it is leaving.
	if m.exiting == 0 {
		m.exit(last, nil)
	}
	if t, ok := last.(Terminator); ok {
		t.OnDestroy()
	}
	m.state = nil
	m.emit(domain.EventStateExit, identityOf(last), "")
	m.logger.Debug("Machine torn down", "from", identityOf(last))
}

func (m *Machine) active() State {
	if m.state == nil {
		panic(domain.ErrNoActiveState)
	}
	return m.state
}

func (m *Machine) transition(next State) {
	prev := m.state
	next.attach(m)

	m.exit(prev, next)
	if m.phase != Running {
		return // destroyed from OnExit
	}

	m.state = next
	from, to := identityOf(prev), identityOf(next)
	m.emit(domain.EventStateExit, from, to)
	m.emit(domain.EventStateEnter, from, to)
	m.logger.Debug("State transition", "from", from, "to", to)

	next.OnEnter()
}

// exit runs s.OnExit(next) with transitions deferred. If OnExit panics, the
// transitions it queued are dropped so a recovered machine stays usable.
func (m *Machine) exit(s, next State) {
	m.exiting++
	completed := false
	defer func() {
		m.exiting--
		if !completed && m.exiting == 0 {
			m.pending = nil
		}
	}()
	s.OnExit(next)
	completed = true
}

func (m *Machine) drain() {
	for len(m.pending) > 0 && m.phase == Running {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.transition(next)
	}
}

func (m *Machine) emit(typ domain.EventType, from, to string) {
	var fn func(*domain.TransitionEvent)
	switch typ {
	case domain.EventStateEnter:
		fn = m.hooks.OnStateEnter
	case domain.EventStateExit:
		fn = m.hooks.OnStateExit
	}
	if fn == nil {
		return
	}
	fn(&domain.TransitionEvent{
		Timestamp: m.now(),
		Type:      typ,
		MachineID: m.id,
		From:      from,
		To:        to,
	})
}

func identityOf(s State) string {
	if s == nil {
		return ""
	}
	return registry.Identity(reflect.TypeOf(s))
}
