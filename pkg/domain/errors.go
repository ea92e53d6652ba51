package domain

import "errors"

// ErrNotAState is returned when a type handle does not implement the State contract.
var ErrNotAState = errors.New("type is not a state")

// ErrNotConstructible is returned when a state type has no zero-argument construction path.
var ErrNotConstructible = errors.New("state type cannot be constructed")

// ErrUnknownType is returned when an identity is not registered in this process.
var ErrUnknownType = errors.New("unknown type identity")

// ErrDetached is the panic value when a state reaches for its machine before being installed.
var ErrDetached = errors.New("state is not attached to a machine")

// ErrAlreadyAttached is the panic value when a state is installed into a second machine.
var ErrAlreadyAttached = errors.New("state is attached to another machine")

// ErrNoActiveState is the panic value when per-cycle callbacks run without an active state.
var ErrNoActiveState = errors.New("machine has no active state")

// ErrNotStarted is the panic value when a transition is requested before startup.
var ErrNotStarted = errors.New("machine has not started")

// ErrTornDown is returned when a transition is requested on a destroyed machine.
var ErrTornDown = errors.New("machine is torn down")

// ErrConfigNotFound is returned when a machine ID cannot be found in the store.
var ErrConfigNotFound = errors.New("machine config not found")

// ErrMachineNotFound is returned when a machine ID is not attached to the driver.
var ErrMachineNotFound = errors.New("machine not found")

// ErrDriverStopped is returned when work is submitted to a driver that is not running.
var ErrDriverStopped = errors.New("driver stopped")
