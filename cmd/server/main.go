package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pkgconfig "admincore/pkg/config"
)

var (
	envFlag       string
	configDirFlag string
)

var rootCmd = &cobra.Command{
	Use:           "admincore",
	Short:         "admincore - task, deadline and reminder engine for the admin backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the reminder scheduler and the event consumer",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply storage migrations and seed notification settings",
	RunE:  runMigrate,
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Run one reminder pass against the configured store",
	RunE:  runRemind,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Ask a running server to flush a notification digest",
	RunE:  runDigest,
}

var (
	bulkDaysFlag  int
	resetFlag     bool
	frequencyFlag string
	serverFlag    string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", pkgconfig.GetConfigEnv(), "configuration environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "config", "directory holding base.yaml and the environment files")

	remindCmd.Flags().IntVar(&bulkDaysFlag, "bulk-days", -1, "send bulk reminders for deadlines due within this many days (0 for due today or overdue) instead of a scheduled pass")
	remindCmd.Flags().BoolVar(&resetFlag, "reset", false, "clear every reminder flag and live ledger record")

	digestCmd.Flags().StringVar(&frequencyFlag, "frequency", "daily", "digest to flush: daily or weekly")
	digestCmd.Flags().StringVar(&serverFlag, "server", "http://localhost:8080", "base URL of the running server")

	rootCmd.AddCommand(serveCmd, migrateCmd, remindCmd, digestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
