package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {

	var listenAddr string
	var tenantID string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use: "chat-connector",
	}

	var sessionManagerCmd = &cobra.Command{
		Use:   "session_manager",
		Short: "Tenant messaging session manager",
		Run: func(cmd *cobra.Command, args []string) {
			startSessionManager(listenAddr)
		},
	}

	var savedSessionReporterCmd = &cobra.Command{
		Use:   "saved_session_reporter",
		Short: "List the tenants with saved session credentials",
		Run: func(cmd *cobra.Command, args []string) {
			startSavedSessionReport()
		},
	}

	var gatewayTokenCmd = &cobra.Command{
		Use:   "gateway_token",
		Short: "Print a gateway token for a tenant",
		Run: func(cmd *cobra.Command, args []string) {
			printGatewayToken(tenantID)
		},
	}

	var sessionStatusMonitorCmd = &cobra.Command{
		Use:   "session_status_monitor",
		Short: "Print the session status messages published on the MQTT broker",
		Run: func(cmd *cobra.Command, args []string) {
			startSessionStatusMonitor()
		},
	}

	rootCmd.AddCommand(sessionManagerCmd)
	sessionManagerCmd.Flags().StringVarP(&listenAddr, "listen-addr", "l", ":8081", "Hostname:port")

	rootCmd.AddCommand(savedSessionReporterCmd)

	rootCmd.AddCommand(gatewayTokenCmd)
	gatewayTokenCmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant id used as the token subject")
	gatewayTokenCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(sessionStatusMonitorCmd)

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
