package domain_test

import (
	"testing"

	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnStateEnter: func(e *domain.TransitionEvent) { calls = append(calls, "a:"+e.To) },
	}
	b := domain.LifecycleHooks{
		OnStateEnter: func(e *domain.TransitionEvent) { calls = append(calls, "b:"+e.To) },
		OnStateExit:  func(e *domain.TransitionEvent) { calls = append(calls, "b-exit:"+e.From) },
	}

	merged := a.Merge(b)
	merged.OnStateEnter(&domain.TransitionEvent{To: "x"})
	merged.OnStateExit(&domain.TransitionEvent{From: "y"})

	assert.Equal(t, []string{"a:x", "b:x", "b-exit:y"}, calls)

	empty := domain.LifecycleHooks{}.Merge(domain.LifecycleHooks{})
	assert.Nil(t, empty.OnStateEnter)
	assert.Nil(t, empty.OnStateExit)
}

func TestTransitionEvent_Terminal(t *testing.T) {
	assert.True(t, (&domain.TransitionEvent{Type: domain.EventStateExit, From: "a"}).Terminal())
	assert.False(t, (&domain.TransitionEvent{Type: domain.EventStateExit, From: "a", To: "b"}).Terminal())
	assert.False(t, (&domain.TransitionEvent{Type: domain.EventStateEnter, To: "b"}).Terminal())
}

func TestMachineConfig_ObjectName(t *testing.T) {
	assert.Equal(t, "m1", (&domain.MachineConfig{ID: "m1"}).ObjectName())
	assert.Equal(t, "player", (&domain.MachineConfig{ID: "m1", Object: "player"}).ObjectName())
}
