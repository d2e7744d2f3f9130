// Package sensor reads the indoor environment. On a Raspberry Pi it talks to
// a BME680 (or BME280) and a PMSA003I over I2C; elsewhere it produces
// synthetic values.
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"riverdash/internal/config"
	"riverdash/internal/logging"
	"riverdash/internal/modules/indoor"
)

// Reader yields one combined indoor reading per call.
type Reader interface {
	Read(ctx context.Context) (indoor.Reading, error)
	Name() string
	Close() error
}

const (
	ModeAuto      = "auto"
	ModeHardware  = "hardware"
	ModeSynthetic = "synthetic"
)

// Open picks the reader for cfg.SensorMode once at startup. In auto mode a
// hardware init failure is logged and the synthetic reader is used instead.
func Open(cfg config.Config, logger *slog.Logger) (Reader, error) {
	return pick(cfg, logging.Component(logger, "sensor"), isRaspberryPi(), func() (Reader, error) {
		return OpenHardware(cfg.BME680Address, cfg.PMSA003IAddress)
	})
}

func pick(cfg config.Config, logger *slog.Logger, onPi bool, openHW func() (Reader, error)) (Reader, error) {
	switch cfg.SensorMode {
	case ModeSynthetic:
		logger.Info("using synthetic sensor data")
		return NewSynthetic(nil), nil
	case ModeHardware:
		r, err := openHW()
		if err != nil {
			return nil, fmt.Errorf("open sensors: %w", err)
		}
		logger.Info("sensors initialized", "reader", r.Name())
		return r, nil
	case ModeAuto, "":
		if !onPi {
			logger.Info("not a Raspberry Pi, using synthetic sensor data",
				"goos", runtime.GOOS, "goarch", runtime.GOARCH)
			return NewSynthetic(nil), nil
		}
		r, err := openHW()
		if err != nil {
			logger.Warn("sensor init failed, falling back to synthetic data", "error", err)
			return NewSynthetic(nil), nil
		}
		logger.Info("sensors initialized", "reader", r.Name())
		return r, nil
	default:
		return nil, fmt.Errorf("unknown sensor mode %q", cfg.SensorMode)
	}
}

func isRaspberryPi() bool {
	return runtime.GOOS == "linux" && (runtime.GOARCH == "arm64" || runtime.GOARCH == "arm")
}

// round rounds the exact binary value half to even, the same as printing it
// with the given precision.
func round(v float64, places int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	return r
}
