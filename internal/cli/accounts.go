package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/client"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations (admins)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orgs, err := newAPIClient().ListOrganizations(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(orgs)
			}
			if len(orgs) == 0 {
				fmt.Println("No organizations found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintln(w, "ID\tNAME\tCREATED"); err != nil {
				return fmt.Errorf("writing table header: %w", err)
			}
			for _, o := range orgs {
				if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", o.ID, o.Name, o.CreatedAt.Local().Format("2006-01-02")); err != nil {
					return fmt.Errorf("writing table row: %w", err)
				}
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := newAPIClient().CreateOrganization(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(org)
			}
			fmt.Printf("✓ Organization %q created (%s)\n", org.Name, org.ID)
			return nil
		},
	})

	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users (supervisors and admins)",
	}
	cmd.AddCommand(newUserListCmd(), newUserInviteCmd(), newUserRemoveCmd())
	return cmd
}

func newUserListCmd() *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := newAPIClient().ListUsers(cmd.Context(), org)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(users)
			}
			if len(users) == 0 {
				fmt.Println("No users found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE"); err != nil {
				return fmt.Errorf("writing table header: %w", err)
			}
			for _, u := range users {
				if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role); err != nil {
					return fmt.Errorf("writing table row: %w", err)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization ID (admins only; default: your own)")
	return cmd
}

func newUserInviteCmd() *cobra.Command {
	var (
		org  string
		name string
		role string
	)

	cmd := &cobra.Command{
		Use:   "invite <email>",
		Short: "Add a user and send them an API key",
		Long: `Add a user to an organization. When the server can send email the new API key
is mailed to the user, otherwise it is printed here once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !auth.Role(role).IsValid() {
				return fmt.Errorf("invalid role %q (agent|supervisor|admin)", role)
			}

			resp, err := newAPIClient().CreateUser(cmd.Context(), client.CreateUserRequest{
				OrganizationID: org,
				Email:          args[0],
				Name:           name,
				Role:           auth.Role(role),
			})
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(resp)
			}
			fmt.Printf("✓ User %s added as %s\n", resp.User.Email, resp.User.Role)
			if resp.Invited {
				fmt.Println("An invite with the API key was sent by email.")
			} else if resp.APIKey != "" {
				fmt.Printf("API key (shown once): %s\n", resp.APIKey)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization ID (admins only; default: your own)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAgent), "role (agent|supervisor|admin)")

	return cmd
}

func newUserRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a user and revoke their keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]interface{}{"id": args[0], "deleted": true})
			}
			fmt.Printf("User %s removed.\n", args[0])
			return nil
		},
	}
}

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage your API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := newAPIClient().ListKeys(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(keys)
			}
			if len(keys) == 0 {
				fmt.Println("No API keys found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if _, err := fmt.Fprintln(w, "ID\tNAME\tPREFIX\tCREATED\tLAST USED"); err != nil {
				return fmt.Errorf("writing table header: %w", err)
			}
			for _, k := range keys {
				lastUsed := "never"
				if k.LastUsedAt != nil {
					lastUsed = *k.LastUsedAt
				}
				if _, err := fmt.Fprintf(w, "%d\t%s\t%s…\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, k.CreatedAt, lastUsed); err != nil {
					return fmt.Errorf("writing table row: %w", err)
				}
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [name]",
		Short: "Create an API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			raw, key, err := newAPIClient().CreateKey(cmd.Context(), name)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]interface{}{"key": raw, "api_key": key})
			}
			fmt.Printf("✓ Key %q created. Copy it now, it is shown only once:\n%s\n", key.Name, raw)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			if err := newAPIClient().DeleteKey(cmd.Context(), id); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(map[string]interface{}{"id": id, "deleted": true})
			}
			fmt.Printf("Key %d revoked.\n", id)
			return nil
		},
	})

	return cmd
}
