package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"laju/pkg/retry"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the active database is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var (
	waitTimeout  time.Duration
	waitAttempts int
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the active database accepts connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := retry.DefaultConfig()
		cfg.MaxAttempts = waitAttempts
		cfg.MaxElapsedTime = waitTimeout

		if err := application.Wait(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ready")
		return nil
	},
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", time.Minute, "maximum time to wait")
	waitCmd.Flags().IntVar(&waitAttempts, "attempts", 30, "maximum number of attempts")
}
