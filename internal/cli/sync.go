package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/visit"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending visits to the server",
		Long: `Send every visit waiting in the sync queue to the server, uploading inline
photos after the visit is created. Visits that fail are marked with an error
and can be retried with 'vigia retry'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, database, err := newEngine()
			if err != nil {
				return err
			}
			defer closeDB(database)

			res, err := engine.SyncAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("syncing: %w", err)
			}

			if isJSON() {
				return printJSON(res)
			}
			printSyncResult(res)
			return nil
		},
	}
}

func newRetryCmd() *cobra.Command {
	var allFailed bool

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Retry syncing a visit",
		Long:  "Retry one visit by id, or every visit in the error state with --all-failed.",
		Args: func(cmd *cobra.Command, args []string) error {
			if allFailed && len(args) > 0 {
				return fmt.Errorf("give a visit id or --all-failed, not both")
			}
			if !allFailed && len(args) != 1 {
				return fmt.Errorf("requires a visit id or --all-failed")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, database, err := newEngine()
			if err != nil {
				return err
			}
			defer closeDB(database)

			if allFailed {
				res, err := engine.RetryFailed(cmd.Context())
				if err != nil {
					return fmt.Errorf("retrying: %w", err)
				}
				if isJSON() {
					return printJSON(res)
				}
				printSyncResult(res)
				return nil
			}

			v, err := findVisit(cmd, store, args[0])
			if err != nil {
				return err
			}
			ok, err := engine.RetrySyncVisit(cmd.Context(), v.ID)
			if err != nil {
				return fmt.Errorf("retrying: %w", err)
			}

			updated, err := store.Get(cmd.Context(), v.ID)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(updated)
			}
			switch {
			case ok:
				fmt.Printf("✓ Visit %s synced.\n", shortID(v.ID))
			case updated.SyncStatus == visit.SyncSynced:
				fmt.Printf("✗ Visit %s is synced, but %d photos are still not uploaded.\n",
					shortID(v.ID), len(updated.InlinePhotos()))
			default:
				fmt.Printf("✗ Visit %s failed: %s\n", shortID(v.ID), updated.SyncError)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allFailed, "all-failed", false, "retry every visit in the error state")

	return cmd
}
