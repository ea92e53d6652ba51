/*
Package domain contains the shared models of the stagehand runtime.

It defines the values that cross package boundaries: the persisted machine
configuration, the transition events emitted to observers, and the sentinel
errors every component wraps. This package holds no behavior beyond small
helpers and is free of I/O.

# Key Entities

  - MachineConfig: The durable part of a machine (its ID, host object name and initial state reference).
  - TransitionEvent: What observers see when a state is entered or exited.
  - LifecycleHooks: Callbacks for auditing transitions (logging, metrics).
*/
package domain
