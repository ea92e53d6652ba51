package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStateEnter EventType = "state_enter"
	EventStateExit  EventType = "state_exit"
)

// TransitionEvent describes one side of a transition.
// From and To are type identities; an empty To on an exit event means the
// machine is tearing down and no successor follows.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	MachineID string    `json:"machine_id"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
}

// Terminal reports whether the event is the final exit of a machine.
func (e *TransitionEvent) Terminal() bool {
	return e.Type == EventStateExit && e.To == ""
}

// LifecycleHooks defines callbacks for machine observability.
// Hooks run synchronously on the goroutine driving the machine. Both events of
// a transition fire after the old state's OnExit and before the new state's
// OnEnter, so a transition started from OnEnter is reported after its parent.
type LifecycleHooks struct {
	OnStateEnter func(*TransitionEvent)
	OnStateExit  func(*TransitionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStateEnter: chain(h.OnStateEnter, other.OnStateEnter),
		OnStateExit:  chain(h.OnStateExit, other.OnStateExit),
	}
}

func chain(a, b func(*TransitionEvent)) func(*TransitionEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(e *TransitionEvent) {
		a(e)
		b(e)
	}
}
