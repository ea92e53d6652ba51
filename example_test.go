package stagehand_test

import (
	"fmt"

	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/typeref"
)

type Walking struct{ machine.Base }

func (s *Walking) OnEnter()                  { fmt.Println("walking: enter") }
func (s *Walking) OnExit(next machine.State) { fmt.Printf("walking: exit to %T\n", next) }

type Jumping struct{ machine.Base }

func (s *Jumping) OnEnter()                  { fmt.Println("jumping: enter") }
func (s *Jumping) OnExit(next machine.State) { fmt.Printf("jumping: exit to %v\n", next) }

func init() {
	machine.Register[Walking]()
	machine.Register[Jumping]()
}

// Example shows the lifecycle of a machine configured to start walking.
func Example() {
	m := machine.NewMachine(
		machine.WithID("player"),
		machine.WithInitialState(typeref.For[*Walking]()),
	)
	m.Start()
	fmt.Println("walking?", machine.IsInState[*Walking](m))

	machine.BeginState[Jumping](m)
	fmt.Println("jumping?", machine.IsInState[*Jumping](m))

	m.Destroy()
	// Output:
	// walking: enter
	// walking? true
	// walking: exit to *stagehand_test.Jumping
	// jumping: enter
	// jumping? true
	// jumping: exit to <nil>
}
