package types

import (
	"time"

	"riverdash/internal/alert"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/modules/river"
)

// RiverRow is a configured station joined with its latest reading, if any.
type RiverRow struct {
	Name           string                `json:"name"`
	SiteID         string                `json:"site_id"`
	Region         string                `json:"region"`
	HasTemperature bool                  `json:"has_temperature"`
	Pinned         bool                  `json:"pinned"`
	Reading        *river.StationReading `json:"reading"`
	FlowChange     *float64              `json:"flow_change"`
	TempChange     *float64              `json:"temp_change"`
}

// RiversPage is one page of the region-filtered river list.
type RiversPage struct {
	Region     string     `json:"region"`
	Regions    []string   `json:"regions"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
	Total      int        `json:"total"`
	Rivers     []RiverRow `json:"rivers"`
}

func (p RiversPage) HasPrev() bool { return p.Page > 1 }
func (p RiversPage) HasNext() bool { return p.Page < p.TotalPages }
func (p RiversPage) PrevPage() int { return p.Page - 1 }
func (p RiversPage) NextPage() int { return p.Page + 1 }

// Indoor is the latest indoor reading with its PM2.5 band.
type Indoor struct {
	Reading    indoor.Reading `json:"reading"`
	AirQuality indoor.Quality `json:"air_quality"`
	Live       bool           `json:"live"`
}

type Series struct {
	Metric indoor.Metric  `json:"metric"`
	Label  string         `json:"label"`
	Unit   string         `json:"unit"`
	Hours  int            `json:"hours"`
	Points []indoor.Point `json:"points"`
}

// Dashboard is everything the overview page renders.
type Dashboard struct {
	Indoor       *Indoor
	Alert        alert.Status
	Pinned       *RiverRow
	Rivers       RiversPage
	Forecasts    []forecast.Bundle
	LastAPIFetch *time.Time
	Refreshing   bool
}

// Intervals are the polling periods in seconds. In a PUT body a zero or
// omitted field keeps its current value.
type Intervals struct {
	APIPollSeconds    int64 `json:"api_poll_seconds"`
	SensorReadSeconds int64 `json:"sensor_read_seconds"`
	SensorLogSeconds  int64 `json:"sensor_log_seconds"`
}
