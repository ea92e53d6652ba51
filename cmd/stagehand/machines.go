package main

import (
	"fmt"

	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var machinesCmd = &cobra.Command{
	Use:     "machines",
	Aliases: []string{"machine", "m"},
	Short:   "Manage persisted machine configs",
	Long: `List, inspect, edit and remove the machine configs held by the configured
store. With the in-memory store only configured machines are visible.`,
}

var machinesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored machines",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Seed(cmd.Context()); err != nil {
			return err
		}
		ids, err := app.Fleet.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list machines: %w", err)
		}

		out := cli.NewPrinter(cmd.OutOrStdout())
		if len(ids) == 0 {
			out.System("No machines found.")
			return nil
		}
		for _, id := range ids {
			cfg, err := app.Fleet.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			initial := cfg.InitialState.Identity()
			if initial == "" {
				initial = "(default)"
			}
			out.Row(id, initial)
		}
		return nil
	},
}

var machinesShowCmd = &cobra.Command{
	Use:   "show <machine-id>",
	Short: "Print a machine config as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Seed(cmd.Context()); err != nil {
			return err
		}
		cfg, err := app.Fleet.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load machine '%s': %w", args[0], err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var machinesSetInitialCmd = &cobra.Command{
	Use:   "set-initial <machine-id> <variant>",
	Short: "Choose the state a machine starts in",
	Long: `Points the machine's initial state at a registered variant. The variant is
a full identity or a bare type name such as "Walking". Pass "" to clear it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Seed(cmd.Context()); err != nil {
			return err
		}

		identity := ""
		if args[1] != "" {
			e, err := machine.FindVariant(app.Registry, args[1])
			if err != nil {
				return err
			}
			identity = e.Identity
		}

		cfg, err := app.Fleet.SetInitialState(cmd.Context(), args[0], identity)
		if err != nil {
			return err
		}
		cli.NewPrinter(cmd.OutOrStdout()).OK("%s starts in %s", cfg.ID, orDefault(cfg.InitialState.Identity()))
		return nil
	},
}

var machinesRmCmd = &cobra.Command{
	Use:   "rm <machine-id>...",
	Short: "Remove one or more machine configs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cli.NewPrinter(cmd.OutOrStdout())
		failed := 0
		for _, id := range args {
			if err := app.Fleet.Delete(cmd.Context(), id); err != nil {
				out.Fail("Error removing '%s': %v", id, err)
				failed++
				continue
			}
			out.OK("Removed machine '%s'", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d machine(s) could not be removed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(machinesCmd)
	machinesCmd.AddCommand(machinesLsCmd)
	machinesCmd.AddCommand(machinesShowCmd)
	machinesCmd.AddCommand(machinesSetInitialCmd)
	machinesCmd.AddCommand(machinesRmCmd)
}

func orDefault(identity string) string {
	if identity == "" {
		return "the default state"
	}
	return identity
}
