package main

import (
	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Drive the machines and serve the HTTP API",
	Long: `Runs the frame loop together with the HTTP API (machines, types,
transitions, server-sent events and Prometheus metrics).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		app, err := stagehand.New(cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cli.NewPrinter(cmd.OutOrStdout())
		out.Banner()
		out.System("Serving on %s", cfg.HTTP.Addr)

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := app.Serve(ctx); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			out.System("Shutdown complete (%v).", sig)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Listen address, overrides http.addr")
}
