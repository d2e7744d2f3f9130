// Package state holds the dashboard's shared in-memory view: latest indoor
// reading, river and forecast data, pinned river and alert status.
package state

import (
	"maps"
	"sync"
	"time"

	"riverdash/internal/alert"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/modules/river"
)

// Snapshot is a point-in-time copy of the store. Its maps are owned by the
// caller; the records inside them must be treated as read-only.
type Snapshot struct {
	Sensor       *indoor.Reading                 `json:"sensor"`
	AirQuality   *indoor.Quality                 `json:"air_quality"`
	Rivers       map[string]river.StationReading `json:"rivers"`
	Forecasts    map[string]forecast.Bundle      `json:"forecasts"`
	PinnedRiver  string                          `json:"pinned_river,omitempty"`
	Alert        alert.Status                    `json:"alert"`
	LastAPIFetch *time.Time                      `json:"last_api_fetch,omitempty"`
	Refreshing   bool                            `json:"refreshing"`
}

type Store struct {
	mu sync.RWMutex

	sensor       *indoor.Reading
	rivers       map[string]river.StationReading
	forecasts    map[string]forecast.Bundle
	pinnedRiver  string
	alert        alert.Status
	lastAPIFetch time.Time
	refreshing   bool
}

func NewStore() *Store {
	return &Store{
		rivers:    make(map[string]river.StationReading),
		forecasts: make(map[string]forecast.Bundle),
	}
}

// ObserveSensor stores r and feeds its PM2.5 to m. The monitor is updated
// under the store lock so a concurrent DismissAlert cannot be overwritten by
// a status computed before it.
func (s *Store) ObserveSensor(r indoor.Reading, m *alert.Monitor, now time.Time) alert.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensor = &r
	s.alert = m.Observe(r.PM25, now)
	return s.alert
}

// DismissAlert silences m and stores the resulting status.
func (s *Store) DismissAlert(m *alert.Monitor, now time.Time) alert.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alert = m.Dismiss(now)
	return s.alert
}

// MergeRivers adds or replaces readings by site id. Sites missing from
// readings keep their previous value.
func (s *Store) MergeRivers(readings map[string]river.StationReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.rivers, readings)
}

// MergeForecasts adds or replaces bundles by location label.
func (s *Store) MergeForecasts(bundles map[string]forecast.Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.forecasts, bundles)
}

// SetPinnedRiver pins siteID; an empty id clears the pin.
func (s *Store) SetPinnedRiver(siteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinnedRiver = siteID
}

// BeginRefresh marks an API refresh as running. It returns false if one
// already is.
func (s *Store) BeginRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return false
	}
	s.refreshing = true
	return true
}

// EndRefresh clears the running flag and, if at is non-zero, records it as
// the last API fetch time.
func (s *Store) EndRefresh(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if !at.IsZero() {
		s.lastAPIFetch = at
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Rivers:      maps.Clone(s.rivers),
		Forecasts:   maps.Clone(s.forecasts),
		PinnedRiver: s.pinnedRiver,
		Alert:       s.alert,
		Refreshing:  s.refreshing,
	}
	if s.sensor != nil {
		r := *s.sensor
		q := indoor.AirQuality(r.PM25)
		snap.Sensor, snap.AirQuality = &r, &q
	}
	if !s.lastAPIFetch.IsZero() {
		t := s.lastAPIFetch
		snap.LastAPIFetch = &t
	}
	return snap
}
