package main

import (
	"fmt"

	"github.com/nikolayk812/storefront/internal/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel)

	if err := repository.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}

	logger.Info("migrations applied")

	return nil
}
