package main

import (
	"fmt"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/pkg/adapters/loam"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file for consistency",
	Long: `Parses the config file and checks that every configured machine's
initial_state, including the documents in machines_dir, names a registered
state variant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		machines := cfg.Machines
		if cfg.MachinesDir != "" {
			catalog, err := loam.Open(cfg.MachinesDir)
			if err != nil {
				return err
			}
			docs, err := catalog.Machines(cmd.Context())
			if err != nil {
				return err
			}
			machines = append(machines, docs...)
		}

		out := cli.NewPrinter(cmd.OutOrStdout())
		reg := registry.Default()
		invalid := 0
		for _, m := range machines {
			identity := m.InitialState.Identity()
			if identity == "" {
				out.OK("%s: default state", m.ID)
				continue
			}
			e, ok := reg.Lookup(identity)
			if !ok || !machine.IsStateType(e.Type) {
				out.Fail("%s: %s is not a registered state variant", m.ID, identity)
				invalid++
				continue
			}
			out.OK("%s: %s", m.ID, identity)
		}
		if invalid > 0 {
			return fmt.Errorf("%d machine(s) have an unresolvable initial state", invalid)
		}
		out.System("Config is valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
