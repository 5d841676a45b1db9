package main

import (
	"github.com/spf13/cobra"

	"github.com/diewo77/invoice-pipeline/internal/config"
	"github.com/diewo77/invoice-pipeline/internal/logging"
	"github.com/diewo77/invoice-pipeline/store"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply metadata database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "file://store/migrations", "golang-migrate source URL")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"}); err != nil {
		return err
	}
	log := logging.WithComponent("cmd.migrate")

	if err := store.RunMigrations(cfg.MetadataDSN, migrationsPath); err != nil {
		log.Error().Err(err).Msg("migration failed")
		return err
	}
	log.Info().Msg("migrations completed")
	return nil
}
