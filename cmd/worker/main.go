// Command worker runs the invoice validation pipeline as a long-lived
// consumer process, following the same cobra-root-plus-subcommands
// shape lh0x0-tax-ai-tools uses for its CLI (run, migrate).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/diewo77/invoice-pipeline/internal/logging"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "invoice-worker",
	Short:   "Asynchronous EN 16931 invoice validation worker",
	Version: version,
}

func main() {
	// Load environment variables from .env file, same as the
	// teacher's own cmd/server entrypoint.
	_ = godotenv.Load()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		log := logging.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
