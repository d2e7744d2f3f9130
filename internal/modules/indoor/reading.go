// Package indoor holds the indoor sensor reading model, its SQLite log and
// the PM2.5 air quality scale.
package indoor

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one combined sample of the environment and particulate sensors.
// Units: °F, %RH, inHg, ohms, µg/m³.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	Temperature   float64   `json:"temperature"`
	Humidity      float64   `json:"humidity"`
	Pressure      float64   `json:"pressure"`
	GasResistance *float64  `json:"gas_resistance"`
	PM1           float64   `json:"pm1"`
	PM25          float64   `json:"pm25"`
	PM10          float64   `json:"pm10"`
}

// Quality is a PM2.5 band with its display colour.
type Quality struct {
	Status string `json:"status"`
	Color  string `json:"color"`
}

var qualityBands = []struct {
	max float64
	q   Quality
}{
	{12, Quality{"Good", "#44ff44"}},
	{35, Quality{"Moderate", "#ffa500"}},
	{55, Quality{"Unhealthy for Sensitive", "#ff8c00"}},
	{150, Quality{"Unhealthy", "#ff4444"}},
}

// AirQuality classifies a PM2.5 concentration. Band upper bounds are inclusive.
func AirQuality(pm25 float64) Quality {
	for _, b := range qualityBands {
		if pm25 <= b.max {
			return b.q
		}
	}
	return Quality{"Very Unhealthy", "#8b0000"}
}

// Metric names a graphable column of the sensor log.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricPressure      Metric = "pressure"
	MetricGasResistance Metric = "gas_resistance"
	MetricPM25          Metric = "pm25"
)

var metricMeta = map[Metric]struct{ label, unit string }{
	MetricTemperature:   {"Temperature", "°F"},
	MetricHumidity:      {"Humidity", "%"},
	MetricPressure:      {"Pressure", "inHg"},
	MetricGasResistance: {"Air Quality", "Ω"},
	MetricPM25:          {"PM2.5", "µg/m³"},
}

func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricMeta[m]; !ok {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

func (m Metric) Label() string { return metricMeta[m].label }

func (m Metric) Unit() string { return metricMeta[m].unit }

// Point is one sample of a single metric.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series extracts metric from readings, keeping their order. Readings
// without a value for the metric are skipped.
func Series(readings []Reading, m Metric) []Point {
	out := make([]Point, 0, len(readings))
	for _, r := range readings {
		var v float64
		switch m {
		case MetricTemperature:
			v = r.Temperature
		case MetricHumidity:
			v = r.Humidity
		case MetricPressure:
			v = r.Pressure
		case MetricGasResistance:
			if r.GasResistance == nil {
				continue
			}
			v = *r.GasResistance
		case MetricPM25:
			v = r.PM25
		default:
			continue
		}
		out = append(out, Point{Time: r.Timestamp, Value: v})
	}
	return out
}
