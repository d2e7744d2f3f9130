package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"riverdash/internal/db"
	"riverdash/internal/migrate"
	"riverdash/internal/modules/indoor"
)

func newPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete logged sensor readings older than the retention period",
		Long: `Delete logged sensor readings older than the retention period.

Uses SENSOR_RETENTION unless overridden with --older-than.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			retention := cfg.SensorRetention
			if olderThan > 0 {
				retention = olderThan
			}
			if retention <= 0 {
				return fmt.Errorf("no retention configured: set SENSOR_RETENTION or --older-than")
			}

			conn, err := db.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close(conn)

			ctx := commandContext(cmd)
			if err := migrate.Run(ctx, conn); err != nil {
				return err
			}
			deleted, err := indoor.NewRepository(conn).DeleteReadingsBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("pruning: %w", err)
			}
			if deleted == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d reading(s) older than %s.\n", deleted, retention)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override retention period (e.g. 720h)")
	return cmd
}
