// Package alert raises an indoor air quality alert when PM2.5 crosses a
// threshold, and lets the user silence it for a fixed period.
package alert

import (
	"sync"
	"time"
)

const (
	DefaultThreshold  = 35.0
	DefaultDismissFor = 20 * time.Minute
)

// Status is the alert state after the latest observation.
type Status struct {
	Active         bool       `json:"active"`
	PM25           float64    `json:"pm25"`
	Level          string     `json:"level,omitempty"`
	Color          string     `json:"color,omitempty"`
	DismissedUntil *time.Time `json:"dismissed_until,omitempty"`
}

type Monitor struct {
	threshold  float64
	dismissFor time.Duration

	mu             sync.Mutex
	dismissedUntil time.Time
	last           Status
}

// NewMonitor uses the defaults for non-positive arguments.
func NewMonitor(threshold float64, dismissFor time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if dismissFor <= 0 {
		dismissFor = DefaultDismissFor
	}
	return &Monitor{threshold: threshold, dismissFor: dismissFor}
}

// Observe records a PM2.5 sample taken at now. The alert is active when the
// sample is at or above the threshold and no dismissal is in force. An
// expired dismissal is cleared.
func (m *Monitor) Observe(pm25 float64, now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{PM25: pm25}
	if !m.dismissedUntil.IsZero() {
		if now.Before(m.dismissedUntil) {
			until := m.dismissedUntil
			st.DismissedUntil = &until
		} else {
			m.dismissedUntil = time.Time{}
		}
	}
	if pm25 >= m.threshold && st.DismissedUntil == nil {
		st.Active = true
		st.Level, st.Color = severity(pm25)
	}
	m.last = st
	return st
}

// Dismiss silences the alert until now plus the dismiss period.
func (m *Monitor) Dismiss(now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dismissedUntil = now.Add(m.dismissFor)
	until := m.dismissedUntil
	m.last.Active = false
	m.last.Level, m.last.Color = "", ""
	m.last.DismissedUntil = &until
	return m.last
}

// Current returns the status from the last Observe or Dismiss.
func (m *Monitor) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func severity(pm25 float64) (level, color string) {
	switch {
	case pm25 <= 55:
		return "Unhealthy for Sensitive Groups", "#ff8c00"
	case pm25 <= 150:
		return "Unhealthy", "#ff4444"
	default:
		return "Very Unhealthy", "#8b0000"
	}
}
