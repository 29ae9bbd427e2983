package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/config"
	"github.com/evcraddock/vigia/internal/db"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer the backend database directly",
	}
	cmd.AddCommand(newAdminBootstrapCmd())
	return cmd
}

func newAdminBootstrapCmd() *cobra.Command {
	var (
		envFile string
		org     string
		email   string
		name    string
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create an organization and its first admin",
		Long: `Create an organization and an admin user in the server database, and print
an API key for that admin. Run this on the server host before 'vigia serve'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			database, err := db.OpenServer(cfg.DBPath)
			if err != nil {
				return err
			}
			defer closeDB(database)

			user, key, err := bootstrapAdmin(database, org, email, name)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{
					"user":    user,
					"api_key": key,
				})
			}
			fmt.Printf("✓ Admin %s created in organization %s\n", user.Email, user.OrganizationID)
			fmt.Printf("API key (shown once): %s\n", key)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "environment file to load (default: .env)")
	cmd.Flags().StringVar(&org, "org", "", "organization name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// bootstrapAdmin creates an organization, an admin in it and an API key.
func bootstrapAdmin(database *sql.DB, orgName, email, name string) (*auth.User, string, error) {
	org, err := auth.NewOrganizationStore(database).Create(orgName)
	if err != nil {
		return nil, "", err
	}
	user, err := auth.NewUserStore(database).Add(org.ID, email, name, auth.RoleAdmin)
	if err != nil {
		return nil, "", err
	}
	key, _, err := auth.NewAPIKeyStore(database).Create(user.ID, "bootstrap")
	if err != nil {
		return nil, "", err
	}
	return user, key, nil
}
