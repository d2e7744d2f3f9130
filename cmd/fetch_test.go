package main

import (
	"bytes"
	"strings"
	"testing"

	"riverdash/internal/config"
	"riverdash/internal/modules/forecast"
	"riverdash/internal/modules/river"
)

func fp(v float64) *float64 { return &v }

func TestRiverRows(t *testing.T) {
	sites := config.Sites{
		DefaultRegion: "Missoula",
		Regions:       []config.Region{{Name: "Flathead", Keywords: []string{"Swan"}}},
		Rivers: []config.River{
			{Name: "Swan River near Bigfork", SiteID: "12370000"},
			{Name: "Clark Fork above Missoula", SiteID: "12340500"},
			{Name: "Bitterroot River near Missoula", SiteID: "12352500"},
		},
	}
	msg := "upstream: 503"
	results := map[string]river.StationReading{
		"12370000": {SiteID: "12370000", FlowCFS: fp(950), Flow24hAgo: fp(900), TempF: fp(48.2)},
		"12340500": {SiteID: "12340500", FlowCFS: fp(1200), Cached: true, Error: &msg},
	}

	rows := riverRows(sites, results)
	want := [][]string{
		{"Swan River near Bigfork", "Flathead", "950", "+50", "48.2", "live"},
		{"Clark Fork above Missoula", "Missoula", "1200", "", "--", "upstream: 503"},
		{"Bitterroot River near Missoula", "Missoula", "--", "", "--", "unavailable"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(rows), len(want))
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %q, want %q", i, rows[i], want[i])
		}
	}
}

func TestWeatherRows(t *testing.T) {
	locs := []forecast.Location{{Name: "Polson", State: "MT"}, {Name: "Hamilton", State: "MT"}}
	results := map[string]forecast.Bundle{
		"Polson, MT": {
			Location: "Polson, MT",
			Current: forecast.Conditions{
				Temperature:   64,
				Conditions:    "Sunny",
				WindSpeed:     "5 mph",
				WindDirection: "NW",
				Humidity:      forecast.KnownHumidity(35),
				Icon:          forecast.IconSun,
			},
			Periods: []forecast.Period{{Name: "Tonight", Temperature: 41, Icon: forecast.IconCloud}},
		},
	}

	rows := weatherRows(locs, results)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	got := strings.Join(rows[0], "|")
	want := "Polson, MT|☀️ 64°F|Sunny|35%|NW 5 mph|Tonight ☁️ 41°F"
	if got != want {
		t.Errorf("row = %q, want %q", got, want)
	}
	if rows[1][2] != "unavailable" {
		t.Errorf("missing location row = %q", rows[1])
	}
}

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, ""},
		{fp(12), "+12"},
		{fp(-3), "-3"},
		{fp(0), "0"},
	}
	for _, tt := range tests {
		if got := formatDelta(tt.in, 0); got != tt.want {
			t.Errorf("formatDelta(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "riverdash dev\n" {
		t.Errorf("output = %q", got)
	}
}
