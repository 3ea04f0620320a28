package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage schema migrations for the active database",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := application.Migrator().Up()
		if err != nil {
			return err
		}
		if !info.Applied {
			fmt.Fprintf(cmd.OutOrStdout(), "no change (version %d)\n", info.FinalVersion)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d -> %d\n", info.CurrentVersion, info.FinalVersion)
		return nil
	},
}

var downSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (all by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		m := application.Migrator()
		if err := m.Down(downSteps); err != nil {
			return err
		}
		version, _, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", version)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		version, dirty, err := application.Migrator().Version()
		if err != nil {
			return err
		}
		if dirty {
			fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", version)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 0, "number of migrations to roll back (0 = all)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
