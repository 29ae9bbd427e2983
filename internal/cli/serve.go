package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/config"
	"github.com/evcraddock/vigia/internal/db"
	"github.com/evcraddock/vigia/internal/events"
	"github.com/evcraddock/vigia/internal/logging"
	"github.com/evcraddock/vigia/internal/objectstore"
	"github.com/evcraddock/vigia/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		envFile string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vigia backend",
		Long: `Start the HTTP API that field devices sync to. Configuration comes from
VIGIA_* environment variables, optionally loaded from an env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "environment file to load (default: .env)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: $VIGIA_ADDR or :8080)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Server) error {
	logging.Setup(os.Stderr, cfg.DevMode)

	database, err := db.OpenServer(cfg.DBPath)
	if err != nil {
		return err
	}
	defer closeDB(database)

	if err := ensureAdmin(database, cfg); err != nil {
		return err
	}

	objects, err := objectstore.New(cfg.StorageDir, cfg.BaseURL+"/storage")
	if err != nil {
		return err
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return err
		}
		pub = p
		slog.Info("publishing visit events", "exchange", cfg.Exchange)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			slog.Warn("closing event publisher", "error", err)
		}
	}()

	if !cfg.SMTP.IsConfigured() {
		slog.Warn("SMTP not configured, new users get their API key in the response")
	}

	srv := web.NewServer(database, objects, web.Options{
		BaseURL: cfg.BaseURL,
		SMTP:    cfg.SMTP,
		Events:  pub,
	})
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// ensureAdmin creates the first admin from VIGIA_ADMIN_EMAIL when the
// server has none, printing its API key once.
func ensureAdmin(database *sql.DB, cfg *config.Server) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	n, err := auth.NewUserStore(database).CountAdmins()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	user, key, err := bootstrapAdmin(database, cfg.AdminOrg, cfg.AdminEmail, "")
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	slog.Info("created admin user", "email", user.Email, "organization_id", user.OrganizationID)
	fmt.Printf("Admin API key for %s (shown once): %s\n", user.Email, key)
	return nil
}
