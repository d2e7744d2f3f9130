package config

import (
	"errors"
	"fmt"
	"time"
)

// Bounds for intervals changed at runtime from the dashboard.
const (
	MinSensorReadInterval = time.Second
	MaxSensorReadInterval = 5 * time.Minute
	MinSensorLogInterval  = 10 * time.Second
	MaxSensorLogInterval  = time.Hour
	MinAPIPollInterval    = 5 * time.Minute
	MaxAPIPollInterval    = 24 * time.Hour
)

// Intervals are the polling periods the dashboard can override. A zero
// field means "not set".
type Intervals struct {
	APIPoll    time.Duration
	SensorRead time.Duration
	SensorLog  time.Duration
}

func (c Config) Intervals() Intervals {
	return Intervals{
		APIPoll:    c.APIPollInterval,
		SensorRead: c.SensorReadInterval,
		SensorLog:  c.SensorLogInterval,
	}
}

// Merge returns iv with every non-zero field of o applied on top.
func (iv Intervals) Merge(o Intervals) Intervals {
	if o.APIPoll > 0 {
		iv.APIPoll = o.APIPoll
	}
	if o.SensorRead > 0 {
		iv.SensorRead = o.SensorRead
	}
	if o.SensorLog > 0 {
		iv.SensorLog = o.SensorLog
	}
	return iv
}

// Validate checks every field against the runtime bounds. The log interval
// may not be shorter than the read interval.
func (iv Intervals) Validate() error {
	var errs []error
	check := func(name string, d, lo, hi time.Duration) {
		if d < lo || d > hi {
			errs = append(errs, fmt.Errorf("%s %v out of range [%v, %v]", name, d, lo, hi))
		}
	}
	check("api poll interval", iv.APIPoll, MinAPIPollInterval, MaxAPIPollInterval)
	check("sensor read interval", iv.SensorRead, MinSensorReadInterval, MaxSensorReadInterval)
	check("sensor log interval", iv.SensorLog, MinSensorLogInterval, MaxSensorLogInterval)
	if iv.SensorLog > 0 && iv.SensorLog < iv.SensorRead {
		errs = append(errs, fmt.Errorf("sensor log interval %v shorter than read interval %v", iv.SensorLog, iv.SensorRead))
	}
	return errors.Join(errs...)
}
