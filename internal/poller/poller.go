// Package poller runs the background jobs that keep the dashboard store
// current: indoor sensor reads and river/weather refreshes.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"riverdash/internal/alert"
	"riverdash/internal/config"
	"riverdash/internal/logging"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/modules/river"
	"riverdash/internal/sensor"
	"riverdash/internal/state"
)

const defaultBatchTimeout = 5 * time.Minute

const (
	tagSensor = "sensor"
	tagAPI    = "api"
	tagPrune  = "prune"
)

type RiverSource interface {
	FetchSites(ctx context.Context, siteIDs []string) map[string]river.StationReading
	Cached(siteID string) (*river.StationReading, error)
}

type ForecastSource interface {
	FetchLocations(ctx context.Context, locs []forecast.Location) map[string]forecast.Bundle
	Cached(name string) (*forecast.Bundle, error)
}

type TelemetryPublisher interface {
	PublishReading(r indoor.Reading) error
}

type Options struct {
	Sensor    sensor.Reader
	Readings  indoor.Repository
	Rivers    RiverSource
	Forecasts ForecastSource
	// Publisher is optional; nil disables telemetry.
	Publisher TelemetryPublisher
	Store     *state.Store
	Alert     *alert.Monitor
	Sites     config.Sites

	SensorInterval time.Duration
	LogInterval    time.Duration
	APIInterval    time.Duration
	// Retention prunes the sensor log daily; zero keeps everything.
	Retention    time.Duration
	BatchTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// OptionsFromConfig fills the interval fields from cfg.
func OptionsFromConfig(cfg config.Config, opts Options) Options {
	opts.SensorInterval = cfg.SensorReadInterval
	opts.LogInterval = cfg.SensorLogInterval
	opts.APIInterval = cfg.APIPollInterval
	opts.Retention = cfg.SensorRetention
	return opts
}

type Poller struct {
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	scheduler *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// schedMu serializes job (re)scheduling.
	schedMu sync.Mutex

	mu         sync.Mutex
	lastLogged time.Time
}

func New(opts Options) *Poller {
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = defaultBatchTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		opts:      opts,
		logger:    logging.Component(opts.Logger, "poller"),
		now:       now,
		scheduler: gocron.NewScheduler(time.UTC),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Locations converts the configured towns for the forecast client.
func Locations(sites config.Sites) []forecast.Location {
	out := make([]forecast.Location, 0, len(sites.Towns))
	for _, t := range sites.Towns {
		out = append(out, forecast.Location{Name: t.Name, State: t.State, Lat: t.Lat, Lon: t.Lon})
	}
	return out
}

// LoadCached seeds the store from the response cache so the dashboard has
// data before the first refresh completes.
func (p *Poller) LoadCached() {
	rivers := make(map[string]river.StationReading)
	for _, id := range p.opts.Sites.SiteIDs() {
		if r, err := p.opts.Rivers.Cached(id); err == nil {
			rivers[id] = *r
		}
	}
	forecasts := make(map[string]forecast.Bundle)
	for _, loc := range Locations(p.opts.Sites) {
		if b, err := p.opts.Forecasts.Cached(loc.Label()); err == nil {
			forecasts[loc.Label()] = *b
		}
	}
	p.opts.Store.MergeRivers(rivers)
	p.opts.Store.MergeForecasts(forecasts)
	p.logger.Info("loaded cached data", "rivers", len(rivers), "forecasts", len(forecasts))
}

// PollSensor takes one reading, updates the store and alert, and appends it
// to the sensor log when the log interval has elapsed. A read error skips the
// tick.
func (p *Poller) PollSensor(ctx context.Context) error {
	r, err := p.opts.Sensor.Read(ctx)
	if err != nil {
		p.logger.Warn("sensor read failed", "sensor", p.opts.Sensor.Name(), "error", err)
		return fmt.Errorf("read %s: %w", p.opts.Sensor.Name(), err)
	}
	now := p.now()
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}

	p.opts.Store.ObserveSensor(r, p.opts.Alert, now)

	if !p.dueForLog(now) {
		return nil
	}
	if err := p.opts.Readings.InsertReading(ctx, r); err != nil {
		p.logger.Error("failed to log sensor reading", "error", err)
		return fmt.Errorf("log reading: %w", err)
	}
	p.markLogged(now)

	if p.opts.Publisher != nil {
		if err := p.opts.Publisher.PublishReading(r); err != nil {
			p.logger.Warn("failed to publish telemetry", "error", err)
		}
	}
	return nil
}

func (p *Poller) dueForLog(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastLogged.IsZero() || now.Sub(p.lastLogged) >= p.opts.LogInterval
}

func (p *Poller) markLogged(now time.Time) {
	p.mu.Lock()
	p.lastLogged = now
	p.mu.Unlock()
}

// RefreshAPIs fetches every river and weather location and merges the
// results into the store. It returns false without fetching when another
// refresh is already running.
func (p *Poller) RefreshAPIs(ctx context.Context) bool {
	if !p.opts.Store.BeginRefresh() {
		return false
	}
	p.refresh(ctx)
	return true
}

// RefreshNow starts a refresh in the background. Calls made while a refresh
// is running are collapsed into it and return false.
func (p *Poller) RefreshNow() bool {
	if !p.opts.Store.BeginRefresh() {
		p.logger.Debug("refresh already running")
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.refresh(p.ctx)
	}()
	return true
}

func (p *Poller) refresh(ctx context.Context) {
	start := p.now()
	defer func() {
		p.opts.Store.EndRefresh(p.now())
	}()

	riverCtx, cancel := context.WithTimeout(ctx, p.opts.BatchTimeout)
	rivers := p.opts.Rivers.FetchSites(riverCtx, p.opts.Sites.SiteIDs())
	cancel()
	p.opts.Store.MergeRivers(rivers)

	weatherCtx, cancel := context.WithTimeout(ctx, p.opts.BatchTimeout)
	forecasts := p.opts.Forecasts.FetchLocations(weatherCtx, Locations(p.opts.Sites))
	cancel()
	p.opts.Store.MergeForecasts(forecasts)

	p.logger.Info("api refresh complete",
		"rivers", len(rivers),
		"forecasts", len(forecasts),
		"duration", p.now().Sub(start),
	)
}

// Prune deletes logged readings older than the retention period.
func (p *Poller) Prune(ctx context.Context) error {
	if p.opts.Retention <= 0 {
		return nil
	}
	cutoff := p.now().Add(-p.opts.Retention)
	n, err := p.opts.Readings.DeleteReadingsBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to prune sensor log", "error", err)
		return fmt.Errorf("prune: %w", err)
	}
	p.logger.Info("pruned sensor log", "deleted", n, "before", cutoff)
	return nil
}

// Start schedules the jobs and runs each once immediately.
func (p *Poller) Start() error {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	iv := p.Intervals()
	if iv.SensorRead <= 0 || iv.APIPoll <= 0 {
		return errors.New("poller: sensor and api intervals must be positive")
	}
	if err := p.scheduleSensor(iv.SensorRead, false); err != nil {
		return err
	}
	if err := p.scheduleAPI(iv.APIPoll, false); err != nil {
		return err
	}
	if p.opts.Retention > 0 {
		_, err := p.scheduler.Every(24 * time.Hour).Tag(tagPrune).SingletonMode().Do(func() {
			_ = p.Prune(p.ctx)
		})
		if err != nil {
			return fmt.Errorf("schedule prune job: %w", err)
		}
	}

	p.scheduler.StartAsync()
	p.logger.Info("poller started",
		"sensor", p.opts.Sensor.Name(),
		"sensor_interval", iv.SensorRead,
		"api_interval", iv.APIPoll,
	)
	return nil
}

func (p *Poller) scheduleSensor(every time.Duration, wait bool) error {
	s := p.scheduler.Every(every).Tag(tagSensor).SingletonMode()
	if wait {
		s = s.WaitForSchedule()
	}
	_, err := s.Do(func() {
		_ = p.PollSensor(p.ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sensor job: %w", err)
	}
	return nil
}

func (p *Poller) scheduleAPI(every time.Duration, wait bool) error {
	s := p.scheduler.Every(every).Tag(tagAPI).SingletonMode()
	if wait {
		s = s.WaitForSchedule()
	}
	_, err := s.Do(func() {
		if !p.RefreshAPIs(p.ctx) {
			p.logger.Debug("skipping scheduled refresh, one is already running")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule api job: %w", err)
	}
	return nil
}

// Intervals returns the polling periods in effect.
func (p *Poller) Intervals() config.Intervals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return config.Intervals{
		APIPoll:    p.opts.APIInterval,
		SensorRead: p.opts.SensorInterval,
		SensorLog:  p.opts.LogInterval,
	}
}

// SetIntervals validates iv and makes it current. Once started, a job whose
// period changed is replaced and first fires one new period from now.
func (p *Poller) SetIntervals(iv config.Intervals) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	old := p.Intervals()
	p.mu.Lock()
	p.opts.APIInterval = iv.APIPoll
	p.opts.SensorInterval = iv.SensorRead
	p.opts.LogInterval = iv.SensorLog
	p.mu.Unlock()

	if p.scheduler.IsRunning() {
		if iv.SensorRead != old.SensorRead {
			if err := p.scheduler.RemoveByTag(tagSensor); err != nil {
				return fmt.Errorf("remove sensor job: %w", err)
			}
			if err := p.scheduleSensor(iv.SensorRead, true); err != nil {
				return err
			}
		}
		if iv.APIPoll != old.APIPoll {
			if err := p.scheduler.RemoveByTag(tagAPI); err != nil {
				return fmt.Errorf("remove api job: %w", err)
			}
			if err := p.scheduleAPI(iv.APIPoll, true); err != nil {
				return err
			}
		}
	}
	p.logger.Info("intervals updated",
		"api_interval", iv.APIPoll,
		"sensor_interval", iv.SensorRead,
		"log_interval", iv.SensorLog,
	)
	return nil
}

// Stop cancels in-flight work, stops the scheduler and waits for manual
// refreshes to return.
func (p *Poller) Stop() {
	p.cancel()
	p.scheduler.Stop()
	p.wg.Wait()
	p.logger.Info("poller stopped")
}
