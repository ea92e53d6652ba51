/*
Package machine implements the state-transition protocol.

A Machine owns exactly one active State once started. Control moves between
states through BeginState, which runs the outgoing state's OnExit while it is
still active, swaps the active reference, and then runs the incoming state's
OnEnter. The host drives a machine by calling Update and FixedUpdate on its
own schedule; the machine forwards both to the active state.

# Variants

A variant is a struct embedding Base:

	type Walking struct {
		machine.Base
	}

	func (w *Walking) FixedUpdate() {
		if jumpPressed(w.Object()) {
			machine.BeginState[Jumping](w.Machine())
		}
	}

	func init() {
		machine.Register[Walking]()
	}

Registering a variant makes its identity resolvable, so a persisted
typeref.TypeRef (for example a machine's InitialState) can be turned back into
a fresh instance at startup.

# Lifecycle

	Uninitialized --Start--> Running --Destroy--> TornDown

Start installs Default and then the configured initial state, if it resolves.
Destroy calls OnExit(nil) on the active state; no OnEnter follows.
*/
package machine
