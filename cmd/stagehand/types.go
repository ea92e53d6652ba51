package main

import (
	"github.com/aretw0/stagehand/internal/cli"
	"github.com/aretw0/stagehand/pkg/machine"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the registered state variants",
	Long:  `Lists every state variant a machine can be configured to start in, with its persisted identity.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cli.NewPrinter(cmd.OutOrStdout())
		for _, e := range machine.Variants(registry.Default()) {
			out.Row(e.Type.Elem().Name(), e.Identity)
		}
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
