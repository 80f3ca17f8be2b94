// Command blockwatchctl is an operator tool for blockwatch: it dry-runs the rule
// engine against a reading and manages the site registry.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:   "blockwatchctl",
		Short: "Operator CLI for the blockwatch risk engine",
		Long: `blockwatchctl dry-runs the block risk rules against a reading and
manages the site registry the server resolves barcodes against.

Database commands read DATABASE_DRIVER and DATABASE_URL from the environment
or a .env file, and accept --driver and --database-url overrides.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := parseOutputFormat(output)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Output format: table, json, yaml")

	rootCmd.AddCommand(newEvaluateCmd(&output))
	rootCmd.AddCommand(newSitesCmd(&output))
	return rootCmd
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
