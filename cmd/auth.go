package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/internal/output"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage server credentials",
	GroupID: "system",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key for the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		server, _ := cmd.Flags().GetString("server")
		if key == "" {
			output.Error("an API key is required (--key)")
			return fmt.Errorf("missing api key")
		}

		creds, err := config.LoadAuth()
		if err != nil {
			return err
		}
		if creds == nil {
			creds = &config.AuthCredentials{}
		}
		creds.APIKey = key
		if server != "" {
			creds.ServerURL = server
		}

		if err := config.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("credentials stored")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.IsAuthenticated() {
			output.Info("not logged in (run: satchel auth login --key <key>)")
			return nil
		}
		output.Info("logged in, server: %s", config.GetServerURL())
		if id, err := config.GetDeviceID(); err == nil {
			output.Subtle("device: %s", id)
		}
		return nil
	},
}

// clearStoredAuth is used by logout.
func clearStoredAuth() error {
	return config.ClearAuth()
}

func init() {
	authLoginCmd.Flags().String("key", "", "API key")
	authLoginCmd.Flags().String("server", "", "server base URL")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
