// Package cli implements the toolgate command tree.
package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/client"
)

func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "toolgate",
		Short:         "toolgate: tool-invocation permission gate for autonomous agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("toolgate {{.Version}}\n")

	cmd.PersistentFlags().String("server", getenvDefault("TOOLGATE_SERVER", "http://127.0.0.1:7466"), "toolgate server base URL")
	cmd.PersistentFlags().String("api-key", getenvDefault("TOOLGATE_API_KEY", ""), "API key (sent as X-API-Key)")

	cmd.AddCommand(newServerCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newEventsCmd())
	cmd.AddCommand(newTOTPCmd())

	return cmd
}

func clientFromCmd(cmd *cobra.Command) *client.Client {
	serverAddr, _ := cmd.Root().PersistentFlags().GetString("server")
	apiKey, _ := cmd.Root().PersistentFlags().GetString("api-key")
	if serverAddr == "" {
		serverAddr = "http://127.0.0.1:7466"
	}
	return client.New(serverAddr, apiKey)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
