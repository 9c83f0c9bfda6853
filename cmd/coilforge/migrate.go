package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coilforge/coilforge/internal/infrastructure/database/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the study database schema",
	}

	// sourceURL turns the configured migration directory into a file source.
	sourceURL := func(a *app) string {
		return "file://" + a.cfg.Database.MigrationPath
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			return postgres.RunMigrations(postgres.DSN(a.cfg.Database), sourceURL(a))
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			return postgres.RollbackMigration(postgres.DSN(a.cfg.Database), sourceURL(a), steps)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(postgres.DSN(a.cfg.Database), sourceURL(a))
			if err != nil {
				return err
			}
			fmt.Printf("version: %d dirty: %v\n", version, dirty)
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-apply the full schema (destroys all study data)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			return postgres.ResetDatabase(postgres.DSN(a.cfg.Database), sourceURL(a))
		},
	}

	var forceVersion int
	force := &cobra.Command{
		Use:   "force",
		Short: "Force the schema version after a partial migration failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts)
			if err != nil {
				return err
			}
			return postgres.ForceMigrationVersion(postgres.DSN(a.cfg.Database), sourceURL(a), forceVersion)
		},
	}
	force.Flags().IntVar(&forceVersion, "version", 0, "schema version to record")
	_ = force.MarkFlagRequired("version")

	cmd.AddCommand(up, down, status, reset, force)
	return cmd
}
