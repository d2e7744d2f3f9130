package river

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	paramDischarge   = "00060"
	paramTemperature = "00010"
)

var errMalformed = errors.New("malformed usgs response")

func parseResponse(resp usgsResponse, siteID string) (*StationReading, error) {
	out := &StationReading{SiteID: siteID}

	for i, series := range resp.Value.TimeSeries {
		if len(series.Variable.VariableCode) == 0 || len(series.Values) == 0 {
			return nil, fmt.Errorf("%w: series %d has no variable code or values", errMalformed, i)
		}
		code := series.Variable.VariableCode[0].Value
		points := series.Values[0].Value
		if len(points) == 0 {
			continue
		}

		current, prior, err := currentAndPrior(points)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", code, err)
		}

		switch code {
		case paramDischarge:
			out.FlowCFS = ptr(round1(current))
			if prior != nil {
				out.Flow24hAgo = ptr(round1(*prior))
			}
		case paramTemperature:
			out.TempF = ptr(round1(celsiusToF(current)))
			if prior != nil {
				out.Temp24hAgo = ptr(round1(celsiusToF(*prior)))
			}
		}
		out.Timestamp = points[len(points)-1].DateTime
	}
	return out, nil
}

// currentAndPrior returns the last point's value and, when the series has
// more than one point, the value whose timestamp is closest to 24h before
// the last one. Ties go to the earliest point scanned.
func currentAndPrior(points []usgsPoint) (float64, *float64, error) {
	last := points[len(points)-1]
	current, err := parseValue(last.Value)
	if err != nil {
		return 0, nil, err
	}
	if len(points) == 1 {
		return current, nil, nil
	}

	lastAt, err := parseTime(last.DateTime)
	if err != nil {
		return 0, nil, err
	}
	target := lastAt.Add(-24 * time.Hour)

	var (
		best     float64
		bestDiff time.Duration = -1
	)
	for _, p := range points {
		at, err := parseTime(p.DateTime)
		if err != nil {
			return 0, nil, err
		}
		diff := at.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			v, err := parseValue(p.Value)
			if err != nil {
				return 0, nil, err
			}
			best, bestDiff = v, diff
		}
	}
	return current, &best, nil
}

func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q", errMalformed, s)
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: dateTime %q", errMalformed, s)
	}
	return t, nil
}

func celsiusToF(c float64) float64 { return c*9/5 + 32 }

// round1 rounds the exact binary value to one decimal, ties to even, so
// 0.25 gives 0.2 and 0.15 (stored as 0.1499...) gives 0.1.
func round1(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return r
}

func ptr(v float64) *float64 { return &v }
