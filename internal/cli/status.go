package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evcraddock/vigia/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connection and auth status",
		Long:  "Tests the connection to the server and checks if the stored API key is valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	serverURL := getServerURL()
	apiKey := getAPIKey()

	fmt.Printf("Server:  %s\n", serverURL)

	if cfg, err := loadConfig(); err == nil && cfg.AgentID != "" {
		fmt.Printf("Agent:   %s\n", cfg.AgentName)
	}

	if apiKey == "" {
		fmt.Println("API Key: not configured")
		fmt.Println("\nRun 'vigia login' to authenticate.")
		return nil
	}

	prefix := apiKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	fmt.Printf("API Key: %s…\n", prefix)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := client.New(serverURL, apiKey).Me(ctx)
	switch {
	case err == nil:
		fmt.Printf("Status:  ✓ connected as %s (%s)\n", user.Email, user.Role)
	case errors.Is(err, client.ErrUnreachable):
		fmt.Printf("Status:  ✗ cannot reach server (%v)\n", err)
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Println("Status:  ✗ invalid API key")
		fmt.Println("\nRun 'vigia login' to re-authenticate.")
	default:
		fmt.Printf("Status:  ✗ unexpected response (%v)\n", err)
	}

	return nil
}
