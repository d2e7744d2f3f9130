package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"riverdash/internal/config"
	"riverdash/internal/logging"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           appName,
		Short:         "Riverside dashboard: river gauges, forecasts and indoor air",
		Long:          "riverdash serves a dashboard of USGS river gauges, NWS forecasts and an indoor air-quality sensor.",
		RunE:          serve.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serve, newFetchCmd(), newMigrateCmd(), newPruneCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

// setup loads the environment config and installs the default logger.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}
	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
