package domain

import "github.com/aretw0/stagehand/pkg/typeref"

// MachineConfig is the persisted part of a machine.
// Only the identity of the initial state is durable; state field data is not.
type MachineConfig struct {
	ID string `json:"id" yaml:"id" mapstructure:"id"`

	// Object names the host object the machine is attached to.
	// Empty means the machine ID is used.
	Object string `json:"object,omitempty" yaml:"object,omitempty" mapstructure:"object"`

	// InitialState is the variant installed at startup. Unset means the
	// machine stays in its default state.
	InitialState typeref.TypeRef `json:"initial_state" yaml:"initial_state,omitempty" mapstructure:"initial_state"`
}

// ObjectName returns the host object name, falling back to the machine ID.
func (c *MachineConfig) ObjectName() string {
	if c.Object != "" {
		return c.Object
	}
	return c.ID
}
