package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Bundle is the parsed forecast for one location.
type Bundle struct {
	Location  string     `json:"location"`
	Current   Conditions `json:"current"`
	Periods   []Period   `json:"periods"`
	Timestamp string     `json:"timestamp"`
	Cached    bool       `json:"cached"`
}

// MarkCached flags the bundle as served from the local cache.
func (b *Bundle) MarkCached() { b.Cached = true }

type Conditions struct {
	Temperature   float64  `json:"temperature"`
	Conditions    string   `json:"conditions"`
	WindSpeed     string   `json:"wind_speed"`
	WindDirection string   `json:"wind_direction"`
	Humidity      Humidity `json:"humidity"`
	Icon          Icon     `json:"icon"`
}

type Period struct {
	Name                string   `json:"name"`
	Temperature         float64  `json:"temperature"`
	Conditions          string   `json:"conditions"`
	DetailedForecast    string   `json:"detailed_forecast"`
	WindSpeed           string   `json:"wind_speed"`
	WindDirection       string   `json:"wind_direction"`
	Humidity            Humidity `json:"humidity"`
	PrecipitationChance float64  `json:"precipitation_chance"`
	Icon                Icon     `json:"icon"`
}

// Location is a named forecast point.
type Location struct {
	Name  string
	State string
	Lat   float64
	Lon   float64
}

// Label is the key used for bundles and the cache: "Name, ST".
func (l Location) Label() string { return l.Name + ", " + l.State }

const humidityUnknown = "unknown"

// Humidity is a relative humidity percentage, or unknown when upstream
// omitted it. It encodes as a number or the string "unknown".
type Humidity struct {
	Value *float64
}

func KnownHumidity(v float64) Humidity { return Humidity{Value: &v} }

func (h Humidity) Known() bool { return h.Value != nil }

func (h Humidity) String() string {
	if h.Value == nil {
		return humidityUnknown
	}
	return strconv.FormatFloat(*h.Value, 'f', -1, 64) + "%"
}

func (h Humidity) MarshalJSON() ([]byte, error) {
	if h.Value == nil {
		return json.Marshal(humidityUnknown)
	}
	return json.Marshal(*h.Value)
}

func (h *Humidity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || (len(data) > 0 && data[0] == '"') {
		h.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("humidity: %w", err)
	}
	h.Value = &v
	return nil
}

// NWS gridpoint and forecast payloads, reduced to the fields we read.

type pointsResponse struct {
	Properties struct {
		Forecast       string `json:"forecast"`
		ForecastHourly string `json:"forecastHourly"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []nwsPeriod `json:"periods"`
	} `json:"properties"`
}

type nwsPeriod struct {
	Name                       *string     `json:"name"`
	StartTime                  *string     `json:"startTime"`
	Temperature                *float64    `json:"temperature"`
	WindSpeed                  *string     `json:"windSpeed"`
	WindDirection              *string     `json:"windDirection"`
	ShortForecast              *string     `json:"shortForecast"`
	DetailedForecast           *string     `json:"detailedForecast"`
	RelativeHumidity           *quantValue `json:"relativeHumidity"`
	ProbabilityOfPrecipitation *quantValue `json:"probabilityOfPrecipitation"`
}

type quantValue struct {
	UnitCode string   `json:"unitCode"`
	Value    *float64 `json:"value"`
}
