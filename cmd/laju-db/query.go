package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query SQL [ARGS...]",
	Short: "Run a statement through the native embedded database service",
	Long: `Run a statement on the embedded sqlite database and print the result as JSON.
Extra arguments are bound to ? placeholders in order.
Fails when the active client is not sqlite.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			params = append(params, a)
		}

		rows, res, err := application.Query(cmd.Context(), args[0], params...)
		if err != nil {
			return err
		}

		var out []byte
		if res != nil {
			out, err = json.MarshalIndent(map[string]int64{
				"changes":            res.Changes,
				"last_insert_row_id": res.LastInsertRowID,
			}, "", "  ")
		} else {
			out, err = json.MarshalIndent(rows, "", "  ")
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
