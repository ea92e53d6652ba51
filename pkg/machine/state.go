package machine

import (
	"fmt"
	"reflect"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/host"
	"github.com/aretw0/stagehand/pkg/registry"
)

// State is the unit of behavior a Machine drives.
//
// Concrete variants embed Base, which supplies no-op hooks and the
// back-reference to the owning machine, and override the hooks they need.
type State interface {
	// OnEnter runs once, right after the state became active.
	OnEnter()
	// OnExit runs once, right before the state is replaced. next is nil when
	// the machine is being torn down.
	OnExit(next State)
	// Update is forwarded from the variable-rate host callback.
	Update()
	// FixedUpdate is forwarded from the fixed-rate host callback.
	FixedUpdate()

	// Machine returns the owning machine. It panics with domain.ErrDetached
	// before the state is installed.
	Machine() *Machine

	attach(m *Machine)
}

// Terminator is implemented by states that want a distinct hook for final
// teardown. It runs after OnExit(nil).
type Terminator interface {
	OnDestroy()
}

// Base implements State with no-op hooks. Embed it in every variant.
type Base struct {
	outer *Machine
}

func (b *Base) OnEnter()          {}
func (b *Base) OnExit(next State) {}
func (b *Base) Update()           {}
func (b *Base) FixedUpdate()      {}

// Machine returns the machine hosting this state.
func (b *Base) Machine() *Machine {
	if b.outer == nil {
		panic(domain.ErrDetached)
	}
	return b.outer
}

// Object returns the host object of the owning machine.
func (b *Base) Object() *host.Object {
	return b.Machine().Object()
}

// Destroy destroys obj. It does not require the state to be attached.
func (b *Base) Destroy(obj *host.Object) {
	obj.Destroy()
}

func (b *Base) attach(m *Machine) {
	if b.outer != nil && b.outer != m {
		panic(domain.ErrAlreadyAttached)
	}
	b.outer = m
}

// Default is the variant installed when nothing else is configured.
type Default struct {
	Base
}

func init() {
	Register[Default]()
}

var stateType = reflect.TypeFor[State]()

// NewState builds a zero instance of a statically known variant.
func NewState[T any, PT interface {
	*T
	State
}]() PT {
	return PT(new(T))
}

// Register makes *T resolvable by identity in the default registry.
func Register[T any, PT interface {
	*T
	State
}]() string {
	return RegisterIn[T, PT](registry.Default())
}

// RegisterIn makes *T resolvable by identity in reg.
func RegisterIn[T any, PT interface {
	*T
	State
}](reg *registry.Registry) string {
	return reg.Register(reflect.TypeFor[PT](), func() any { return PT(new(T)) })
}

// IsStateType reports whether t implements State.
func IsStateType(t reflect.Type) bool {
	return t != nil && t.Implements(stateType)
}

// Construct builds a state from a dynamically known type using the default registry.
func Construct(t reflect.Type) (State, error) {
	return ConstructFrom(registry.Default(), t)
}

// ConstructFrom builds a state from t. A factory registered in reg wins;
// otherwise pointer-to-struct types are built reflectively from their zero
// value. The returned error wraps domain.ErrNotAState or
// domain.ErrNotConstructible.
func ConstructFrom(reg *registry.Registry, t reflect.Type) (State, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", domain.ErrNotAState)
	}
	if !IsStateType(t) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotAState, t)
	}

	if reg != nil {
		if e, ok := reg.LookupType(t); ok && e.Factory != nil {
			s, ok := e.Factory().(State)
			if !ok || s == nil {
				return nil, fmt.Errorf("%w: factory for %s returned %T", domain.ErrNotConstructible, e.Identity, s)
			}
			return s, nil
		}
	}

	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		return reflect.New(t.Elem()).Interface().(State), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotConstructible, t)
}

// GetComponent returns the *T component of the host object of s.
func GetComponent[T any](s State) (*T, bool) {
	return host.Get[T](s.Machine().Object())
}

// AddComponent adds a zero *T component to the host object of s.
func AddComponent[T any](s State) *T {
	return host.Add[T](s.Machine().Object())
}

// Variants lists the registered entries of reg whose type is a State.
func Variants(reg *registry.Registry) []registry.Entry {
	var out []registry.Entry
	for _, e := range reg.List() {
		if IsStateType(e.Type) {
			out = append(out, e)
		}
	}
	return out
}

// FindVariant resolves name to a State variant of reg. name is either a full
// identity or the bare type name ("Walking"), which must be unambiguous.
func FindVariant(reg *registry.Registry, name string) (registry.Entry, error) {
	if e, ok := reg.Lookup(name); ok {
		if !IsStateType(e.Type) {
			return registry.Entry{}, fmt.Errorf("%w: %s", domain.ErrNotAState, name)
		}
		return e, nil
	}

	var matches []registry.Entry
	for _, e := range Variants(reg) {
		if e.Type.Kind() == reflect.Pointer && e.Type.Elem().Name() == name {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return registry.Entry{}, fmt.Errorf("%w: %s", domain.ErrUnknownType, name)
	case 1:
		return matches[0], nil
	}
	return registry.Entry{}, fmt.Errorf("%w: %q matches %d variants, use the full identity", domain.ErrUnknownType, name, len(matches))
}
