package river

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type point struct{ value, at string }

// usgsJSON renders a minimal NWIS response with one series per code.
func usgsJSON(series map[string][]point, order ...string) string {
	var parts []string
	for _, code := range order {
		var pts []string
		for _, p := range series[code] {
			pts = append(pts, fmt.Sprintf(`{"value":%q,"qualifiers":["P"],"dateTime":%q}`, p.value, p.at))
		}
		parts = append(parts, fmt.Sprintf(
			`{"variable":{"variableCode":[{"value":%q,"network":"NWIS"}]},"values":[{"value":[%s]}]}`,
			code, strings.Join(pts, ","),
		))
	}
	return `{"value":{"timeSeries":[` + strings.Join(parts, ",") + `]}}`
}

func decode(t *testing.T, body string) usgsResponse {
	t.Helper()
	var r usgsResponse
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return r
}

func val(t *testing.T, name string, p *float64) float64 {
	t.Helper()
	if p == nil {
		t.Fatalf("%s = nil", name)
	}
	return *p
}

func TestParseResponse_DischargeAndTemperature(t *testing.T) {
	body := usgsJSON(map[string][]point{
		paramDischarge: {
			{"1230", "2026-05-01T11:45:00.000-06:00"},
			{"1234.56", "2026-05-01T12:00:00.000-06:00"},
			{"1300", "2026-05-01T18:00:00.000-06:00"},
			{"1402.04", "2026-05-02T12:00:00.000-06:00"},
		},
		paramTemperature: {
			{"8.0", "2026-05-01T12:00:00.000-06:00"},
			{"10.0", "2026-05-02T12:15:00.000-06:00"},
		},
	}, paramDischarge, paramTemperature)

	got, err := parseResponse(decode(t, body), "12340500")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if got.SiteID != "12340500" {
		t.Errorf("SiteID = %q", got.SiteID)
	}
	if v := val(t, "FlowCFS", got.FlowCFS); v != 1402.0 {
		t.Errorf("FlowCFS = %v, want 1402.0", v)
	}
	if v := val(t, "Flow24hAgo", got.Flow24hAgo); v != 1234.6 {
		t.Errorf("Flow24hAgo = %v, want 1234.6", v)
	}
	if v := val(t, "TempF", got.TempF); v != 50.0 {
		t.Errorf("TempF = %v, want 50.0", v)
	}
	if v := val(t, "Temp24hAgo", got.Temp24hAgo); v != 46.4 {
		t.Errorf("Temp24hAgo = %v, want 46.4", v)
	}
	if got.Timestamp != "2026-05-02T12:15:00.000-06:00" {
		t.Errorf("Timestamp = %q, want last processed series' last point", got.Timestamp)
	}
	if got.Cached {
		t.Error("fresh reading marked cached")
	}
}

func TestParseResponse_Closest24hTieGoesToFirstSeen(t *testing.T) {
	body := usgsJSON(map[string][]point{
		paramDischarge: {
			{"100", "2026-05-01T11:00:00Z"},
			{"200", "2026-05-01T13:00:00Z"},
			{"300", "2026-05-02T12:00:00Z"},
		},
	}, paramDischarge)

	got, err := parseResponse(decode(t, body), "x")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if v := val(t, "Flow24hAgo", got.Flow24hAgo); v != 100 {
		t.Errorf("Flow24hAgo = %v, want 100 (first of two equidistant points)", v)
	}
}

func TestParseResponse_SinglePointHasNoPrior(t *testing.T) {
	body := usgsJSON(map[string][]point{
		paramDischarge:   {{"55.56", "2026-05-02T12:00:00Z"}},
		paramTemperature: {{"0", "2026-05-02T12:00:00Z"}},
	}, paramDischarge, paramTemperature)

	got, err := parseResponse(decode(t, body), "x")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if v := val(t, "FlowCFS", got.FlowCFS); v != 55.6 {
		t.Errorf("FlowCFS = %v, want 55.6", v)
	}
	if got.Flow24hAgo != nil || got.Temp24hAgo != nil {
		t.Error("24h-ago values should be nil with a single point")
	}
	if v := val(t, "TempF", got.TempF); v != 32 {
		t.Errorf("TempF = %v, want 32", v)
	}
}

func TestParseResponse_EmptySeriesStaysNil(t *testing.T) {
	body := usgsJSON(map[string][]point{
		paramDischarge:   {{"0", "2026-05-01T12:00:00Z"}, {"0.0", "2026-05-02T12:00:00Z"}},
		paramTemperature: {},
	}, paramDischarge, paramTemperature)

	got, err := parseResponse(decode(t, body), "x")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if got.TempF != nil || got.Temp24hAgo != nil {
		t.Errorf("temperature = %v/%v, want nil for empty series", got.TempF, got.Temp24hAgo)
	}
	if v := val(t, "FlowCFS", got.FlowCFS); v != 0 {
		t.Errorf("FlowCFS = %v, want a real 0", v)
	}
	if v := val(t, "Flow24hAgo", got.Flow24hAgo); v != 0 {
		t.Errorf("Flow24hAgo = %v, want a real 0", v)
	}
	if got.Timestamp != "2026-05-02T12:00:00Z" {
		t.Errorf("Timestamp = %q", got.Timestamp)
	}
}

func TestParseResponse_OtherVariableOnlyMovesTimestamp(t *testing.T) {
	body := usgsJSON(map[string][]point{
		paramDischarge: {{"10", "2026-05-02T12:00:00Z"}},
		"00065":        {{"3.2", "2026-05-02T12:30:00Z"}},
	}, paramDischarge, "00065")

	got, err := parseResponse(decode(t, body), "x")
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if v := val(t, "FlowCFS", got.FlowCFS); v != 10 {
		t.Errorf("FlowCFS = %v", v)
	}
	if got.Timestamp != "2026-05-02T12:30:00Z" {
		t.Errorf("Timestamp = %q, want gage-height timestamp", got.Timestamp)
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad value", usgsJSON(map[string][]point{paramDischarge: {{"Ice", "2026-05-02T12:00:00Z"}}}, paramDischarge)},
		{"bad time", usgsJSON(map[string][]point{paramDischarge: {{"1", "yesterday"}, {"2", "2026-05-02T12:00:00Z"}}}, paramDischarge)},
		{"no variable code", `{"value":{"timeSeries":[{"variable":{"variableCode":[]},"values":[{"value":[]}]}]}}`},
		{"no values", `{"value":{"timeSeries":[{"variable":{"variableCode":[{"value":"00060"}]},"values":[]}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseResponse(decode(t, tt.body), "x")
			if !errors.Is(err, errMalformed) {
				t.Errorf("err = %v, want errMalformed", err)
			}
		})
	}
}

func TestStationReading_Changes(t *testing.T) {
	r := StationReading{FlowCFS: ptr(1402), Flow24hAgo: ptr(1234.6), TempF: ptr(50)}
	if d := r.FlowChange(); d == nil || *d != 167.4 {
		t.Errorf("FlowChange = %v, want 167.4", d)
	}
	if r.TempChange() != nil {
		t.Error("TempChange should be nil without a prior value")
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.2},
		{0.35, 0.3},
		{0.15, 0.1},
		{0.45, 0.5},
		{1234.56, 1234.6},
		{-2.25, -2.2},
		{0, 0},
		{51.8, 51.8},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
