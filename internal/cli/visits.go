package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/localstore"
	"github.com/evcraddock/vigia/internal/visit"
)

func newListCmd() *cobra.Command {
	var (
		visitType  string
		syncStatus string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visits recorded on this device",
		Long:  "List locally recorded visits, newest first, optionally filtered by type or sync status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if visitType != "" && !visit.Type(visitType).IsValid() {
				return fmt.Errorf("invalid type %q (routine|liraa)", visitType)
			}

			store, database, err := newLocalStore()
			if err != nil {
				return err
			}
			defer closeDB(database)

			all, err := store.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			visits := make([]*visit.Visit, 0, len(all))
			for _, v := range all {
				if visitType != "" && string(v.Type) != visitType {
					continue
				}
				if syncStatus != "" && string(v.SyncStatus) != syncStatus {
					continue
				}
				visits = append(visits, v)
			}

			if isJSON() {
				return printJSON(visits)
			}
			return printVisitTable(visits)
		},
	}

	cmd.Flags().StringVar(&visitType, "type", "", "filter by type (routine|liraa)")
	cmd.Flags().StringVar(&syncStatus, "sync", "", "filter by sync status (pending|syncing|synced|error)")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show visit details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, database, err := newLocalStore()
			if err != nil {
				return err
			}
			defer closeDB(database)

			v, err := findVisit(cmd, store, args[0])
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(v)
			}
			printVisitSummary(v)
			return nil
		},
	}
}

func newEditCmd() *cobra.Command {
	var (
		neighborhood string
		notes        string
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a recorded visit",
		Long: `Change the neighborhood or observations of a visit. Synced visits are also
updated on the server when it can be reached.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch visit.Patch
			if cmd.Flags().Changed("neighborhood") {
				patch.Neighborhood = &neighborhood
			}
			if cmd.Flags().Changed("notes") {
				patch.Observations = &notes
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change, use --neighborhood or --notes")
			}

			engine, store, database, err := newEngine()
			if err != nil {
				return err
			}
			defer closeDB(database)

			v, err := findVisit(cmd, store, args[0])
			if err != nil {
				return err
			}

			updated, err := engine.UpdateVisit(cmd.Context(), v.ID, patch)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(updated)
			}
			fmt.Printf("Visit %s updated.\n", shortID(updated.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&neighborhood, "neighborhood", "", "new neighborhood")
	cmd.Flags().StringVar(&notes, "notes", "", "new observations")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a visit",
		Long:  "Delete a visit from this device, and from the server when it was already synced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, database, err := newEngine()
			if err != nil {
				return err
			}
			defer closeDB(database)

			v, err := findVisit(cmd, store, args[0])
			if err != nil {
				return err
			}

			if err := engine.DeleteVisit(cmd.Context(), v.ID); err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{
					"id":      v.ID,
					"deleted": true,
				})
			}
			fmt.Printf("Visit %s deleted.\n", shortID(v.ID))
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show counts of local visits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, database, err := newLocalStore()
			if err != nil {
				return err
			}
			defer closeDB(database)

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(stats)
			}
			printStats(stats)
			return nil
		},
	}
}

// findVisit resolves a full id or an unambiguous id prefix, as shown in
// the list table.
func findVisit(cmd *cobra.Command, store *localstore.Store, id string) (*visit.Visit, error) {
	v, err := store.Get(cmd.Context(), id)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, localstore.ErrNotFound) {
		return nil, err
	}

	all, err := store.ListAll(cmd.Context())
	if err != nil {
		return nil, err
	}
	return matchPrefix(all, id)
}

func matchPrefix(visits []*visit.Visit, prefix string) (*visit.Visit, error) {
	var found *visit.Visit
	for _, v := range visits {
		if len(prefix) > 0 && len(v.ID) >= len(prefix) && v.ID[:len(prefix)] == prefix {
			if found != nil {
				return nil, fmt.Errorf("visit id %q is ambiguous", prefix)
			}
			found = v
		}
	}
	if found == nil {
		return nil, fmt.Errorf("visit %s: %w", prefix, localstore.ErrNotFound)
	}
	return found, nil
}
