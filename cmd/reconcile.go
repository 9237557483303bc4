package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/reconcile"
	"github.com/JakeFAU/my-github-review/internal/storage"
)

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Removes pending markers that have no completed profile",
		Long: `Deletes every pending marker without a completed context and exits.
Only run this while no server is using the same store, since it cannot tell
a dead task from one still in flight.`,
		RunE: runReconcileCommand,
	}
}

func runReconcileCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveSession(cmd.Context())
	if err != nil {
		return err
	}
	store, err := storage.OpenProfileStore(cmd.Context(), rt.cfg.Store, rt.logger.Named("store"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			rt.logger.Warn("profile store close failed", zap.Error(cerr))
		}
	}()

	removed, err := reconcile.New(store, rt.logger.Named("reconcile")).Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned pending markers\n", removed)
	return nil
}
