package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"task-calendar/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema (sqlite tables or mongo indexes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the store migrates it.
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "%s storage is up to date\n", cfg.StorageDriver)
		return nil
	},
}
