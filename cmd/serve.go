package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/my-github-review/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API and the worker pool",
		Long: `Reconciles orphaned pending markers left by a previous process, then
starts the worker pool and the HTTP API. Blocks until SIGINT or SIGTERM.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	app, err := server.Build(cmd.Context(), &rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	return app.Run(cmd.Context())
}
