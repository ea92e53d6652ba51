/*
Package stagehand is a small runtime for state machines whose states are
behavior objects with lifecycle hooks.

A Machine owns exactly one active State. States are plain Go types that embed
machine.Base and override OnEnter, OnExit, Update and FixedUpdate. Which
variant a machine starts in is configuration: a TypeRef stores the variant's
durable identity string, and the variant registry turns it back into a type
at startup.

# Concept

	type Walking struct{ machine.Base }

	func (s *Walking) FixedUpdate() {
		if jumpPressed() {
			machine.BeginState[Jumping](s.Machine())
		}
	}

	func init() { machine.Register[Walking]() }

A transition calls OnExit(next) on the old state while it is still active,
swaps, then calls OnEnter on the new one. Teardown calls OnExit(nil).

# Application

The App type in this package wires the pieces a host process needs: a config
store (memory, file or redis), a fleet manager that persists each machine's
initial state, a driver loop that forwards Update and FixedUpdate at their own
rates, Prometheus metrics, and an HTTP API. Machines are seeded from the
config file and from a directory of machine documents (machines_dir); configs
already in the store take precedence over both.

	cfg, err := config.Load("stagehand.yaml")
	if err != nil {
		log.Fatal(err)
	}
	app, err := stagehand.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()
	log.Fatal(app.Serve(ctx))
*/
package stagehand
