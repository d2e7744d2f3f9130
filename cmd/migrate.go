package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"riverdash/internal/db"
	"riverdash/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(conn)

			if err := migrate.Run(commandContext(cmd), conn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database at %s is up to date.\n", cfg.SQLitePath)
			return nil
		},
	}
}
