// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/inkletter/inkletter/internal/config"
	"github.com/inkletter/inkletter/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations to the PostgreSQL database.`,
		RunE:  runMigrate,
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(cfg.Database.URL.Expose())
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // best-effort cleanup on exit

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Database schema is up to date")
		return nil
	}

	cmd.Printf("Applying %d pending migration(s)...\n", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}

	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	cmd.Printf("Migrations completed, schema at version %d\n", version)
	return nil
}
