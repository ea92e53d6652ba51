package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/machine"
)

const (
	// DefaultFrameInterval is the wall-clock period of Run, about 60 FPS.
	DefaultFrameInterval = 16667 * time.Microsecond
	// DefaultFixedStep is the simulated period of FixedUpdate, 50 Hz.
	DefaultFixedStep = 20 * time.Millisecond
	// DefaultMaxFixedSteps caps catch-up work in a single frame.
	DefaultMaxFixedSteps = 5
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("driver already running")

// Frame describes one completed call to Step.
type Frame struct {
	Number     uint64
	Delta      time.Duration // simulated time fed to the frame
	FixedSteps int           // FixedUpdate passes run this frame
	Dropped    int           // whole fixed steps discarded by the cap
	Machines   int           // machines updated
	Reaped     int           // machines torn down because their object was destroyed
	Work       time.Duration // wall-clock time spent in the frame
}

// Hooks observes the loop.
type Hooks struct {
	OnFrame func(Frame)
}

type command struct {
	fn   func() error
	done chan error
}

// Driver plays the role of the host engine: it owns a set of machines and
// forwards the variable-rate and fixed-rate callbacks to them.
//
// Machines are not safe for concurrent use, so while Run is active every
// interaction with an attached machine must go through Do.
type Driver struct {
	frameInterval time.Duration
	fixedStep     time.Duration
	maxFixedSteps int
	logger        *slog.Logger
	hooks         Hooks
	now           func() time.Time

	mu       sync.Mutex
	machines map[string]*machine.Machine
	order    []string
	queue    []*command
	running  bool
	stopped  bool
	wake     chan struct{}

	// Owned by the goroutine calling Step.
	accumulator time.Duration
	frame       uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithFrameInterval sets the wall-clock period between frames in Run.
func WithFrameInterval(d time.Duration) Option {
	return func(dr *Driver) {
		dr.frameInterval = d
	}
}

// WithFixedStep sets the simulated period of FixedUpdate.
func WithFixedStep(d time.Duration) Option {
	return func(dr *Driver) {
		dr.fixedStep = d
	}
}

// WithMaxFixedSteps caps how many FixedUpdate passes one frame may run.
func WithMaxFixedSteps(n int) Option {
	return func(dr *Driver) {
		dr.maxFixedSteps = n
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(dr *Driver) {
		dr.logger = logger
	}
}

// WithHooks registers loop observers.
func WithHooks(hooks Hooks) Option {
	return func(dr *Driver) {
		dr.hooks = hooks
	}
}

// New creates an idle driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		frameInterval: DefaultFrameInterval,
		fixedStep:     DefaultFixedStep,
		maxFixedSteps: DefaultMaxFixedSteps,
		logger:        logging.NewNop(),
		now:           time.Now,
		machines:      make(map[string]*machine.Machine),
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.frameInterval <= 0 {
		d.frameInterval = DefaultFrameInterval
	}
	if d.fixedStep <= 0 {
		d.fixedStep = DefaultFixedStep
	}
	if d.maxFixedSteps <= 0 {
		d.maxFixedSteps = DefaultMaxFixedSteps
	}
	return d
}

// FixedStep returns the simulated FixedUpdate period.
func (d *Driver) FixedStep() time.Duration {
	return d.fixedStep
}

// Attach adds a machine to the loop, starting it if needed. The caller must
// not touch m afterwards except through Do.
func (d *Driver) Attach(m *machine.Machine) error {
	if m.Phase() == machine.Uninitialized {
		m.Start()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return domain.ErrDriverStopped
	}
	if _, exists := d.machines[m.ID()]; exists {
		return fmt.Errorf("machine %q already attached", m.ID())
	}
	d.machines[m.ID()] = m
	d.order = append(d.order, m.ID())
	d.logger.Debug("Machine attached", "machine_id", m.ID())
	return nil
}

// Detach removes a machine and tears it down. While Run is active it must be
// called from inside Do.
func (d *Driver) Detach(id string) error {
	m := d.remove(id)
	if m == nil {
		return fmt.Errorf("%w: %s", domain.ErrMachineNotFound, id)
	}
	m.Destroy()
	d.logger.Debug("Machine detached", "machine_id", id)
	return nil
}

// Machine returns an attached machine. While Run is active the result may
// only be used from inside Do.
func (d *Driver) Machine(id string) (*machine.Machine, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.machines[id]
	return m, ok
}

// Machines returns the IDs of attached machines in attach order.
func (d *Driver) Machines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.order...)
}

func (d *Driver) remove(id string) *machine.Machine {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.machines[id]
	if !ok {
		return nil
	}
	delete(d.machines, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			break
		}
	}
	return m
}

func (d *Driver) snapshot() []*machine.Machine {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*machine.Machine, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.machines[id])
	}
	return out
}

// Do runs fn on the goroutine driving the machines and returns its error.
// It returns domain.ErrDriverStopped once Run has exited. If ctx is done
// first, Do returns ctx.Err() and fn may still run later.
func (d *Driver) Do(ctx context.Context, fn func() error) error {
	cmd := &command{fn: fn, done: make(chan error, 1)}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return domain.ErrDriverStopped
	}
	d.queue = append(d.queue, cmd)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) runCommands() {
	d.mu.Lock()
	cmds := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, cmd := range cmds {
		cmd.run()
	}
}

func (c *command) run() {
	defer func() {
		if r := recover(); r != nil {
			c.done <- fmt.Errorf("command panicked: %v", r)
		}
	}()
	c.done <- c.fn()
}

// Step advances the loop by dt of simulated time: queued commands run first,
// then FixedUpdate once per whole fixed step accumulated, then Update once.
// Machines whose host object was destroyed are torn down at the end of the
// frame. Step must not be called concurrently with Run.
func (d *Driver) Step(dt time.Duration) Frame {
	start := d.now()
	d.frame++
	d.runCommands()

	machines := d.snapshot()
	f := Frame{Number: d.frame, Delta: dt, Machines: len(machines)}

	d.accumulator += dt
	for d.accumulator >= d.fixedStep {
		if f.FixedSteps == d.maxFixedSteps {
			f.Dropped = int(d.accumulator / d.fixedStep)
			d.accumulator %= d.fixedStep
			d.logger.Debug("Fixed steps dropped", "frame", f.Number, "dropped", f.Dropped)
			break
		}
		for _, m := range machines {
			if m.Phase() == machine.Running {
				m.FixedUpdate()
			}
		}
		d.accumulator -= d.fixedStep
		f.FixedSteps++
	}

	for _, m := range machines {
		if m.Phase() == machine.Running {
			m.Update()
		}
	}

	f.Reaped = d.reap(machines)
	f.Work = d.now().Sub(start)

	if d.hooks.OnFrame != nil {
		d.hooks.OnFrame(f)
	}
	return f
}

// reap detaches machines whose host object is gone or that tore themselves down.
func (d *Driver) reap(machines []*machine.Machine) int {
	n := 0
	for _, m := range machines {
		if !m.Object().Destroyed() && m.Phase() != machine.TornDown {
			continue
		}
		if d.remove(m.ID()) == nil {
			continue
		}
		m.Destroy()
		d.logger.Debug("Machine reaped", "machine_id", m.ID(), "object", m.Object().Name())
		n++
	}
	return n
}

// Run drives the attached machines until ctx is done, then tears all of them
// down. A driver runs at most once.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running || d.stopped {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("Driver started",
		"frame_interval", d.frameInterval,
		"fixed_step", d.fixedStep,
	)

	ticker := time.NewTicker(d.frameInterval)
	defer ticker.Stop()

	last := d.now()
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case <-d.wake:
			d.safely(d.runCommands)
		case <-ticker.C:
			now := d.now()
			dt := now.Sub(last)
			last = now
			d.safely(func() { d.Step(dt) })
		}
	}
}

// safely keeps the loop alive when a state hook panics.
func (d *Driver) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered panic in driver loop", "frame", d.frame, "panic", r)
		}
	}()
	fn()
}

func (d *Driver) shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.running = false
	cmds := d.queue
	d.queue = nil
	ids := append([]string(nil), d.order...)
	d.mu.Unlock()

	for _, cmd := range cmds {
		cmd.done <- domain.ErrDriverStopped
	}

	for _, id := range ids {
		if m := d.remove(id); m != nil {
			d.safely(m.Destroy)
		}
	}
	d.logger.Info("Driver stopped", "frames", d.frame, "machines", len(ids))
}
