package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var maintainWatch bool

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run database maintenance once, or on MAINTENANCE_SCHEDULE with --watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if maintainWatch {
			return application.RunMaintenance(cmd.Context())
		}
		if err := application.Maintain(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	maintainCmd.Flags().BoolVar(&maintainWatch, "watch", false, "keep running and repeat on the configured schedule")
}
