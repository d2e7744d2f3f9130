package controller

import (
	"log/slog"
	"net/http"
	"time"

	"riverdash/internal/alert"
	"riverdash/internal/config"
	"riverdash/internal/logging"
	"riverdash/internal/modules/dashboard/repository"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/state"
)

// Refresher starts a background river/weather refresh. It returns false when
// one is already running.
type Refresher interface {
	RefreshNow() bool
}

// IntervalSetter changes polling periods while running.
type IntervalSetter interface {
	Intervals() config.Intervals
	SetIntervals(iv config.Intervals) error
}

type Deps struct {
	Settings  repository.SettingsRepository
	Readings  indoor.Repository
	Store     *state.Store
	Alert     *alert.Monitor
	Refresher Refresher
	Intervals IntervalSetter
	// DefaultIntervals are restored when the overrides are cleared.
	DefaultIntervals config.Intervals
	Sites            config.Sites
	Logger           *slog.Logger
	Now              func() time.Time
}

type DashboardController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type dashboardControllerImpl struct {
	settings  repository.SettingsRepository
	readings  indoor.Repository
	store     *state.Store
	alert     *alert.Monitor
	refresher Refresher
	intervals IntervalSetter
	defaults  config.Intervals
	sites     config.Sites
	logger    *slog.Logger
	now       func() time.Time
}

func NewDashboardController(d Deps) DashboardController {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &dashboardControllerImpl{
		settings:  d.Settings,
		readings:  d.Readings,
		store:     d.Store,
		alert:     d.Alert,
		refresher: d.Refresher,
		intervals: d.Intervals,
		defaults:  d.DefaultIntervals,
		sites:     d.Sites,
		logger:    logging.Component(d.Logger, "dashboard"),
		now:       now,
	}
}

func (c *dashboardControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleDashboard)
	mux.HandleFunc("GET /partials/rivers", c.handleRiversPartial)

	mux.HandleFunc("GET /api/v1/snapshot", c.handleSnapshot)
	mux.HandleFunc("GET /api/v1/rivers", c.handleRivers)
	mux.HandleFunc("GET /api/v1/rivers/{id}", c.handleRiver)
	mux.HandleFunc("PUT /api/v1/rivers/{id}/pin", c.handlePin)
	mux.HandleFunc("DELETE /api/v1/rivers/{id}/pin", c.handleUnpin)
	mux.HandleFunc("GET /api/v1/weather", c.handleWeather)
	mux.HandleFunc("GET /api/v1/weather/{name}", c.handleWeatherLocation)
	mux.HandleFunc("GET /api/v1/indoor/latest", c.handleIndoorLatest)
	mux.HandleFunc("GET /api/v1/indoor/readings", c.handleIndoorReadings)
	mux.HandleFunc("GET /api/v1/indoor/series", c.handleIndoorSeries)
	mux.HandleFunc("POST /api/v1/refresh", c.handleRefresh)
	mux.HandleFunc("GET /api/v1/alert", c.handleAlert)
	mux.HandleFunc("POST /api/v1/alert/dismiss", c.handleAlertDismiss)
	mux.HandleFunc("GET /api/v1/settings/intervals", c.handleGetIntervals)
	mux.HandleFunc("PUT /api/v1/settings/intervals", c.handlePutIntervals)
	mux.HandleFunc("DELETE /api/v1/settings/intervals", c.handleResetIntervals)
}
