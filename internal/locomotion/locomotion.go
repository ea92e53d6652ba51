// Package locomotion is a small set of demo variants: a body that walks,
// jumps and falls back to the ground under a fixed-rate physics step.
package locomotion

import (
	"time"

	"github.com/aretw0/stagehand/pkg/host"
	"github.com/aretw0/stagehand/pkg/machine"
)

const (
	DefaultStep      = 20 * time.Millisecond
	DefaultWalkSpeed = 2.0  // units per second
	DefaultJumpSpeed = 5.0  // initial upward velocity
	DefaultGravity   = 20.0 // downward acceleration
)

// Body is the physical component the variants act on.
type Body struct {
	X, Y     float64
	VY       float64
	Grounded bool
	Landings int
	Frames   int // variable-rate updates seen, for animation
}

// Tuning holds the physics constants of a body.
type Tuning struct {
	Step      time.Duration // must match the driver's fixed step
	WalkSpeed float64
	JumpSpeed float64
	Gravity   float64
}

// Input carries requests from outside the machine.
type Input struct {
	Jump bool
}

func init() {
	machine.Register[Walking]()
	machine.Register[Jumping]()
	machine.Register[Falling]()
}

// Setup adds the locomotion components to obj and returns its body.
func Setup(obj *host.Object, step time.Duration) *Body {
	obj.Put(&Tuning{
		Step:      step,
		WalkSpeed: DefaultWalkSpeed,
		JumpSpeed: DefaultJumpSpeed,
		Gravity:   DefaultGravity,
	})
	host.Ensure[Input](obj)
	return host.Ensure[Body](obj)
}

// RequestJump asks a walking body to jump on its next fixed step.
func RequestJump(obj *host.Object) {
	host.Ensure[Input](obj).Jump = true
}

// kit resolves the components a variant needs, adding missing ones.
func kit(s machine.State) (*Body, *Tuning) {
	obj := s.Machine().Object()
	tuning, ok := host.Get[Tuning](obj)
	if !ok {
		tuning = &Tuning{
			Step:      DefaultStep,
			WalkSpeed: DefaultWalkSpeed,
			JumpSpeed: DefaultJumpSpeed,
			Gravity:   DefaultGravity,
		}
		obj.Put(tuning)
	}
	return host.Ensure[Body](obj), tuning
}

func (t *Tuning) dt() float64 {
	return t.Step.Seconds()
}

// Walking moves the body along X and jumps on request.
type Walking struct {
	machine.Base
}

func (s *Walking) OnEnter() {
	body, _ := kit(s)
	body.Grounded = true
	body.VY = 0
	body.Y = 0
}

func (s *Walking) FixedUpdate() {
	body, tuning := kit(s)
	if in, ok := machine.GetComponent[Input](s); ok && in.Jump {
		in.Jump = false
		machine.BeginState[Jumping](s.Machine())
		return
	}
	body.X += tuning.WalkSpeed * tuning.dt()
}

func (s *Walking) Update() {
	body, _ := kit(s)
	body.Frames++
}

// Jumping launches the body and hands over to Falling at the apex.
type Jumping struct {
	machine.Base
}

func (s *Jumping) OnEnter() {
	body, tuning := kit(s)
	body.Grounded = false
	body.VY = tuning.JumpSpeed
}

func (s *Jumping) FixedUpdate() {
	body, tuning := kit(s)
	integrate(body, tuning)
	if body.VY <= 0 {
		machine.BeginState[Falling](s.Machine())
	}
}

// Falling accelerates the body down until it lands, then walks again.
type Falling struct {
	machine.Base
}

func (s *Falling) FixedUpdate() {
	body, tuning := kit(s)
	integrate(body, tuning)
	if body.Y <= 0 {
		machine.BeginState[Walking](s.Machine())
	}
}

func (s *Falling) OnExit(next machine.State) {
	if _, landed := next.(*Walking); landed {
		body, _ := kit(s)
		body.Landings++
	}
}

func integrate(body *Body, tuning *Tuning) {
	dt := tuning.dt()
	body.VY -= tuning.Gravity * dt
	body.Y += body.VY * dt
	if body.Y < 0 {
		body.Y = 0
	}
}
