// Package cli defines the cobra command tree for vigia.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/client"
	"github.com/evcraddock/vigia/internal/db"
	"github.com/evcraddock/vigia/internal/localstore"
	"github.com/evcraddock/vigia/internal/logging"
	"github.com/evcraddock/vigia/internal/syncer"
)

var (
	flagFormat  string
	flagDB      string
	flagVerbose bool
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vigia",
		Short: "Record and sync entomological surveillance visits",
		Long: `Record routine and LIRAa property visits in the field, keep them on this device
until a connection is available, and sync them to the vigia backend. The same binary
runs the backend (vigia serve) and its administration commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logging.Setup(os.Stderr, true)
			}
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "local SQLite database path (default: ~/.config/vigia/field.db)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newRecordCmd(),
		newListCmd(),
		newShowCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newStatsCmd(),
		newSyncCmd(),
		newRetryCmd(),
		newRemoteCmd(),
		newDashboardCmd(),
		newMapCmd(),
		newExportCmd(),
		newServeCmd(),
		newAdminCmd(),
		newOrgCmd(),
		newUserCmd(),
		newKeyCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// openDB opens the local field database using the --db flag or default path.
func openDB() (*sql.DB, error) {
	path := flagDB
	if path == "" {
		var err error
		path, err = db.DefaultLocalPath()
		if err != nil {
			return nil, err
		}
	}
	return db.OpenLocal(path)
}

// newLocalStore opens the field database and wraps it in a visit store.
// Callers close the returned database.
func newLocalStore() (*localstore.Store, *sql.DB, error) {
	database, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return localstore.New(database), database, nil
}

// newEngine opens the local store and a sync engine talking to the
// configured server.
func newEngine() (*syncer.Engine, *localstore.Store, *sql.DB, error) {
	store, database, err := newLocalStore()
	if err != nil {
		return nil, nil, nil, err
	}
	return syncer.New(store, newAPIClient()), store, database, nil
}

// newAPIClient creates an HTTP client for the vigia API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getAPIKey())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
