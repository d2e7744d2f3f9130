package forecast

import (
	"errors"
	"fmt"
)

const (
	maxPeriods = 7
	notAvail   = "N/A"
)

var errMalformed = errors.New("malformed nws forecast")

func parseForecast(daily, hourly forecastResponse, label string) (*Bundle, error) {
	periods := daily.Properties.Periods
	hourlyPeriods := hourly.Properties.Periods

	var cur nwsPeriod
	switch {
	case len(hourlyPeriods) > 0:
		cur = hourlyPeriods[0]
	case len(periods) > 0:
		cur = periods[0]
	default:
		return nil, fmt.Errorf("%w: no hourly or daily periods", errMalformed)
	}
	if cur.Temperature == nil || cur.ShortForecast == nil || cur.StartTime == nil {
		return nil, fmt.Errorf("%w: current period missing temperature, shortForecast or startTime", errMalformed)
	}

	out := &Bundle{
		Location: label,
		Current: Conditions{
			Temperature:   *cur.Temperature,
			Conditions:    *cur.ShortForecast,
			WindSpeed:     orNA(cur.WindSpeed),
			WindDirection: orNA(cur.WindDirection),
			Humidity:      humidityOf(cur.RelativeHumidity),
			Icon:          IconFor(*cur.ShortForecast),
		},
		Periods:   make([]Period, 0, min(len(periods), maxPeriods)),
		Timestamp: *cur.StartTime,
	}

	for i, p := range periods {
		if i == maxPeriods {
			break
		}
		if p.Name == nil || p.Temperature == nil || p.ShortForecast == nil || p.DetailedForecast == nil {
			return nil, fmt.Errorf("%w: period %d incomplete", errMalformed, i)
		}
		out.Periods = append(out.Periods, Period{
			Name:                *p.Name,
			Temperature:         *p.Temperature,
			Conditions:          *p.ShortForecast,
			DetailedForecast:    *p.DetailedForecast,
			WindSpeed:           orNA(p.WindSpeed),
			WindDirection:       orNA(p.WindDirection),
			Humidity:            humidityOf(p.RelativeHumidity),
			PrecipitationChance: precipOf(p.ProbabilityOfPrecipitation),
			Icon:                IconFor(*p.ShortForecast),
		})
	}
	return out, nil
}

func orNA(s *string) string {
	if s == nil {
		return notAvail
	}
	return *s
}

func humidityOf(q *quantValue) Humidity {
	if q == nil || q.Value == nil {
		return Humidity{}
	}
	return KnownHumidity(*q.Value)
}

func precipOf(q *quantValue) float64 {
	if q == nil || q.Value == nil {
		return 0
	}
	return *q.Value
}
