package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pgstore "github.com/JakeFAU/curation-crawler/internal/storage/postgres"
)

type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

// newMigrator is the migrator factory, replaceable in tests.
var newMigrator = func(dsn string, logger *zap.Logger) (migrator, error) {
	return pgstore.NewMigrator(dsn, logger)
}

// newMigrateCmd creates the 'migrate' command group.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error { return m.Up() })
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error { return m.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(migrator) error) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	if err := rt.cfg.RequireDatabase(); err != nil {
		return err
	}
	m, err := newMigrator(rt.cfg.Database.URL, rt.logger.Named("migrate"))
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			rt.logger.Warn("failed to close migrator", zap.Error(cerr))
		}
	}()
	return fn(m)
}
