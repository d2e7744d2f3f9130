package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"riverdash/internal/alert"
	"riverdash/internal/modules/dashboard/types"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/indoor"
	"riverdash/internal/modules/river"
)

func ptr(v float64) *float64 { return &v }

func TestLoadTemplates(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if dashboardTmpl == nil {
		t.Fatal("LoadTemplates() left dashboardTmpl nil")
	}
}

func TestLoadTemplates_Failures(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing dir", fstest.MapFS{}},
		{"bad syntax", fstest.MapFS{"templates/dashboard.html": {Data: []byte("{{ .")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := dashboardTmpl
			t.Cleanup(func() { dashboardTmpl = prev })
			if err := loadTemplatesFromFS(tt.fsys, "templates"); err == nil {
				t.Fatal("loadTemplatesFromFS = nil; want error")
			}
		})
	}
}

func TestRender_NotLoaded(t *testing.T) {
	prev := dashboardTmpl
	dashboardTmpl = nil
	t.Cleanup(func() { dashboardTmpl = prev })

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &types.Dashboard{}); err == nil || !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("RenderDashboard err = %v", err)
	}
	if err := RenderRiversPartial(&buf, &types.RiversPage{}); err == nil {
		t.Error("RenderRiversPartial err = nil")
	}
}

func TestRenderDashboard_Empty(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderDashboard(&buf, &types.Dashboard{Rivers: types.RiversPage{Page: 1, TotalPages: 1}}); err != nil {
		t.Fatalf("RenderDashboard: %v", err)
	}
	body := buf.String()
	for _, want := range []string{"No sensor reading yet", "No river pinned", "No rivers in this region", "No forecast data", "Waiting for first update"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestRenderDashboard_Full(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	row := types.RiverRow{
		Name:           "Swan River near Bigfork",
		SiteID:         "12370000",
		HasTemperature: true,
		Pinned:         true,
		Reading:        &river.StationReading{SiteID: "12370000", FlowCFS: ptr(1250), TempF: ptr(48.2), Cached: true},
		FlowChange:     ptr(-40),
		TempChange:     ptr(1.5),
	}
	fetched := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	data := &types.Dashboard{
		Indoor: &types.Indoor{
			Reading:    indoor.Reading{Temperature: 70.5, Humidity: 41, Pressure: 29.95, PM25: 40},
			AirQuality: indoor.AirQuality(40),
		},
		Alert:  alert.Status{Active: true, PM25: 40, Level: "Unhealthy for Sensitive Groups", Color: "#ff8c00"},
		Pinned: &row,
		Rivers: types.RiversPage{Region: "Flathead", Regions: []string{"All", "Flathead"}, Page: 1, TotalPages: 2, Rivers: []types.RiverRow{row}},
		Forecasts: []forecast.Bundle{{
			Location: "Polson, MT",
			Current:  forecast.Conditions{Temperature: 61, Conditions: "Sunny", Icon: forecast.IconSun, Humidity: forecast.KnownHumidity(35)},
			Periods:  []forecast.Period{{Name: "Tonight", Temperature: 40, Conditions: "Clear", Icon: forecast.IconSun, PrecipitationChance: 10}},
		}},
		LastAPIFetch: &fetched,
	}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, data); err != nil {
		t.Fatalf("RenderDashboard: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		"Air quality alert: Unhealthy for Sensitive Groups",
		"Unhealthy for Sensitive",
		"Swan River near Bigfork",
		"1250",
		"▼ -40",
		"▲ +1.5",
		"(cached)",
		"Polson, MT",
		"35%",
		"Tonight",
		"Page 1 of 2",
		"Next ›",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "‹ Prev") {
		t.Error("first page should not link to a previous page")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatNum(nil, 1); got != "--" {
		t.Errorf("formatNum(nil) = %q", got)
	}
	if got := formatNum(ptr(48.25), 1); got != "48.2" && got != "48.3" {
		t.Errorf("formatNum = %q", got)
	}
	tests := []struct {
		v    *float64
		want string
	}{
		{nil, ""},
		{ptr(12), "▲ +12"},
		{ptr(-3), "▼ -3"},
		{ptr(0), "● 0"},
	}
	for _, tt := range tests {
		if got := formatChange(tt.v, 0); got != tt.want {
			t.Errorf("formatChange(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
	if formatClock(nil) != "" {
		t.Error("formatClock(nil) should be empty")
	}
}
