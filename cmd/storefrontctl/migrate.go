package main

import (
	"fmt"

	"github.com/punchamoorthee/storefront/internal/store"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the orders schema",
	}
	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", (*store.Migrator).Up),
		migrateStep("down", "Roll back every migration", (*store.Migrator).Down),
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *store.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func migrateStep(use, short string, step func(*store.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := step(m); err != nil {
					return fmt.Errorf("migrate %s: %w", use, err)
				}
				version, _, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: schema at version %d\n", use, version)
				return nil
			})
		},
	}
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	src, err := dbSource(cmd)
	if err != nil {
		return err
	}
	m, err := store.NewMigrator(src)
	if err != nil {
		return err
	}
	runErr := fn(m)
	if err := m.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
