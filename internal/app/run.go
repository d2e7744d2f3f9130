package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"riverdash/internal/alert"
	"riverdash/internal/config"
	"riverdash/internal/db"
	"riverdash/internal/httpapi"
	"riverdash/internal/migrate"
	"riverdash/internal/modules/dashboard"
	dashboardrepo "riverdash/internal/modules/dashboard/repository"
	dashboardviews "riverdash/internal/modules/dashboard/views"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/mqtt"
	"riverdash/internal/poller"
	"riverdash/internal/sensor"
	"riverdash/internal/state"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"cacheDir", cfg.CacheDir,
		"sitesFile", cfg.SitesFile,
		"sensorMode", cfg.SensorMode,
		"apiPollInterval", cfg.APIPollInterval,
		"sensorReadInterval", cfg.SensorReadInterval,
		"sensorLogInterval", cfg.SensorLogInterval,
		"sensorRetention", cfg.SensorRetention,
		"mqttBroker", cfg.MQTTBroker,
	)

	sites, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		return err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(dbConn); err != nil {
			logger.Error("db close", "error", err)
		}
	}()

	if err := migrate.Run(ctx, dbConn); err != nil {
		return err
	}
	logger.Info("database ready")

	if err := dashboardviews.LoadTemplates(); err != nil {
		return err
	}

	clients, err := NewClients(cfg, logger)
	if err != nil {
		return err
	}

	reader, err := sensor.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Error("sensor close", "error", err)
		}
	}()

	store := state.NewStore()
	settings := dashboardrepo.NewRepository(dbConn)
	if err := restorePinned(ctx, settings, sites, store); err != nil {
		logger.Warn("could not restore pinned river", "error", err)
	}

	var publisher poller.TelemetryPublisher
	if cfg.MQTTEnabled() {
		p := mqtt.NewPublisher(cfg, logger)
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (telemetry will start once the broker is reachable)", "error", err)
		}
		defer p.Disconnect()
		publisher = p
	}

	monitor := alert.NewMonitor(cfg.PM25AlertThreshold, cfg.AlertDismissDuration)
	readings := indoor.NewRepository(dbConn)

	poll := poller.New(poller.OptionsFromConfig(cfg, poller.Options{
		Sensor:    reader,
		Readings:  readings,
		Rivers:    clients.Rivers,
		Forecasts: clients.Forecast,
		Publisher: publisher,
		Store:     store,
		Alert:     monitor,
		Sites:     sites,
		Logger:    logger,
	}))
	defer poll.Stop()
	if err := restoreIntervals(ctx, settings, cfg.Intervals(), poll); err != nil {
		logger.Warn("ignoring saved poll intervals", "error", err)
	}
	poll.LoadCached()
	if err := poll.Start(); err != nil {
		return err
	}

	mux := httpapi.NewMux(dbConn)
	dashboard.RegisterFeature(mux, dashboard.Deps{
		Settings:  settings,
		Readings:  readings,
		Store:     store,
		Alert:     monitor,
		Refresher: poll,
		Intervals: poll,

		DefaultIntervals: cfg.Intervals(),
		Sites:            sites,
		Logger:           logger,
	})

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// restorePinned loads the persisted pin into the store. A pin for a station
// no longer in the site list is dropped.
func restorePinned(ctx context.Context, settings dashboardrepo.SettingsRepository, sites config.Sites, store *state.Store) error {
	id, err := settings.GetPinnedRiver(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	if _, ok := sites.River(id); !ok {
		if err := settings.ClearPinnedRiver(ctx); err != nil {
			return fmt.Errorf("drop stale pin %q: %w", id, err)
		}
		return nil
	}
	store.SetPinnedRiver(id)
	return nil
}

type intervalSetter interface {
	SetIntervals(iv config.Intervals) error
}

// restoreIntervals applies poll intervals saved from the dashboard on top of
// defaults. Nothing is applied when none are saved or the result is invalid.
func restoreIntervals(ctx context.Context, settings dashboardrepo.SettingsRepository, defaults config.Intervals, target intervalSetter) error {
	saved, err := settings.GetIntervals(ctx)
	if err != nil {
		return err
	}
	if saved == (config.Intervals{}) {
		return nil
	}
	return target.SetIntervals(defaults.Merge(saved))
}
