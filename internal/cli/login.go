package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/auth"
	"github.com/evcraddock/vigia/internal/client"
)

func newLoginCmd() *cobra.Command {
	var (
		server string
		apiKey string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an API key",
		Long: `Store the API key you received from your supervisor. The key is checked
against the server and your agent identity is saved for new visits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), server, apiKey, os.Stdin)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server URL (default: from config or http://localhost:8080)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default: prompt)")

	return cmd
}

func runLogin(ctx context.Context, serverFlag, key string, in io.Reader) error {
	serverURL := serverFlag
	if serverURL == "" {
		serverURL = getServerURL()
	}

	if key == "" {
		fmt.Print("Paste your API key: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading input: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if err := validateAPIKey(key); err != nil {
		return err
	}

	user, err := client.New(serverURL, key).Me(ctx)
	if err != nil {
		return fmt.Errorf("checking API key: %w", err)
	}

	// Load existing config to preserve other fields
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}

	cfg.APIKey = key
	if serverFlag != "" {
		cfg.ServerURL = serverFlag
	}
	cfg.AgentID = user.ID
	cfg.AgentName = user.Name
	if cfg.AgentName == "" {
		cfg.AgentName = user.Email
	}
	cfg.OrganizationID = user.OrganizationID

	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("✓ Logged in as %s (%s).\n", cfg.AgentName, user.Role)
	return nil
}

// validateAPIKey checks that the key is non-empty and has the expected prefix.
func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("no API key provided")
	}
	if !strings.HasPrefix(key, auth.KeyPrefix) {
		return fmt.Errorf("invalid API key format (should start with %s)", auth.KeyPrefix)
	}
	return nil
}
