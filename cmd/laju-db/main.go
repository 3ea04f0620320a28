// Command laju-db inspects and maintains the Laju database configured by DB_* variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"laju/internal/app"
	"laju/internal/shared"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// application is initialized by PersistentPreRunE.
var application *app.App

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if application != nil {
		if cerr := application.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		stop()
		os.Exit(exitCode(err))
	}
}

// Exit codes: problems the caller can fix versus failures of the database itself.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func exitCode(err error) int {
	switch shared.KindOf(err) {
	case shared.KindUnknown:
		if err == nil {
			return exitSuccess
		}
		return exitSysError
	case shared.KindValidation, shared.KindUnavailable, shared.KindConflict:
		return exitUserError
	default:
		return exitSysError
	}
}

func hintFor(err error) string {
	switch {
	case shared.IsValidation(err):
		return "check DB_CLIENT, DATABASE_URL and the other DB_* variables (run `laju-db config`)"
	case shared.IsUnavailable(err):
		return "the native service only works when DB_CLIENT selects sqlite"
	}
	return ""
}

var rootCmd = &cobra.Command{
	Use:   "laju-db",
	Short: "Laju database layer tool",
	Long: `laju-db resolves the database configuration from DB_CLIENT, DATABASE_URL,
DB_HOST and related variables, and runs checks, migrations, queries and
maintenance against the active backend (sqlite, postgres or mysql).`,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(maintainCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "laju-db %s\n", Version)
	},
}

func initApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	a, err := app.New()
	if err != nil {
		return shared.MarkKind(fmt.Errorf("load config: %w", err), shared.KindValidation)
	}
	application = a
	return nil
}
