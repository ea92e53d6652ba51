package main

import (
	"github.com/aretw0/stagehand/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the configured machines headless",
	Long: `Seeds the configured machines into the store, spawns every stored machine
and drives them on the frame loop until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cli.NewPrinter(cmd.OutOrStdout())
		if !quiet {
			out.Banner()
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		n, err := app.Bootstrap(ctx)
		if err != nil {
			return err
		}
		if !quiet {
			out.System("Driving %d machine(s). Press Ctrl+C to stop.", n)
		}

		err = app.Driver.Run(ctx)
		if !quiet {
			if sig := ctx.Signal(); sig != nil {
				out.System("Stopped by %v.", sig)
			} else {
				out.System("Stopped.")
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress the banner and status messages")
}
