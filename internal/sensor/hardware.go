package sensor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"riverdash/internal/modules/indoor"
)

const inHgPerHPa = 0.02953

// Hardware reads a Bosch environment sensor and a PMSA003I on the default
// I2C bus. A BME680 is driven directly; a BME280 or BMP280 goes through
// bmxx80.
type Hardware struct {
	mu   sync.Mutex
	bus  i2c.BusCloser
	env  envSensor
	pm   *i2c.Dev
	now  func() time.Time
	name string
}

// envSample is one environment measurement. Gas is nil without a heater
// plate or when the heater did not stabilize.
type envSample struct {
	physic.Env
	Gas *float64
}

type envSensor interface {
	String() string
	sense() (envSample, error)
	halt() error
}

type bmxSensor struct{ dev *bmxx80.Dev }

func (b bmxSensor) String() string { return b.dev.String() }
func (b bmxSensor) halt() error    { return b.dev.Halt() }

func (b bmxSensor) sense() (envSample, error) {
	var s envSample
	err := b.dev.Sense(&s.Env)
	return s, err
}

// OpenHardware initializes the host drivers and both sensors.
func OpenHardware(envAddr, pmAddr uint16) (*Hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	h, err := openOnBus(bus, envAddr, pmAddr)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return h, nil
}

// openOnBus picks the environment driver from the chip id register and
// checks the particle sensor answers with a valid frame.
func openOnBus(bus i2c.BusCloser, envAddr, pmAddr uint16) (*Hardware, error) {
	env, err := openEnv(bus, envAddr)
	if err != nil {
		return nil, err
	}
	pm := &i2c.Dev{Bus: bus, Addr: pmAddr}
	if _, err := readPM(pm); err != nil {
		_ = env.halt()
		return nil, fmt.Errorf("pmsa003i at %#x: %w", pmAddr, err)
	}
	return &Hardware{
		bus:  bus,
		env:  env,
		pm:   pm,
		now:  time.Now,
		name: fmt.Sprintf("%s+pmsa003i", env),
	}, nil
}

func openEnv(bus i2c.Bus, addr uint16) (envSensor, error) {
	dev := &i2c.Dev{Bus: bus, Addr: addr}
	id, err := readChipID(dev)
	if err != nil {
		return nil, fmt.Errorf("env sensor at %#x: %w", addr, err)
	}
	switch id {
	case chipIDBME680:
		d, err := newBME680(dev)
		if err != nil {
			return nil, fmt.Errorf("bme680 at %#x: %w", addr, err)
		}
		return d, nil
	case chipIDBME280, chipIDBMP280:
		d, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
		if err != nil {
			return nil, fmt.Errorf("bmxx80 at %#x: %w", addr, err)
		}
		return bmxSensor{d}, nil
	default:
		return nil, fmt.Errorf("env sensor at %#x: unknown chip id %#02x", addr, id)
	}
}

func (h *Hardware) Name() string { return h.name }

func (h *Hardware) Read(ctx context.Context) (indoor.Reading, error) {
	if err := ctx.Err(); err != nil {
		return indoor.Reading{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	e, err := h.env.sense()
	if err != nil {
		return indoor.Reading{}, fmt.Errorf("%s sense: %w", h.env, err)
	}
	pm, err := readPM(h.pm)
	if err != nil {
		return indoor.Reading{}, err
	}
	return toReading(h.now(), e, pm), nil
}

func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return errors.Join(h.env.halt(), h.bus.Close())
}

func readPM(d *i2c.Dev) (PMData, error) {
	buf := make([]byte, pmFrameLen)
	if err := d.Tx(nil, buf); err != nil {
		return PMData{}, fmt.Errorf("pmsa003i read: %w", err)
	}
	return parsePMFrame(buf)
}

// toReading converts raw sensor units. Gas resistance is rounded to whole
// ohms when present.
func toReading(ts time.Time, e envSample, pm PMData) indoor.Reading {
	tempF := e.Temperature.Celsius()*9/5 + 32
	humidity := float64(e.Humidity) / float64(physic.PercentRH)
	hPa := float64(e.Pressure) / float64(100*physic.Pascal)
	r := indoor.Reading{
		Timestamp:   ts,
		Temperature: round(tempF, 1),
		Humidity:    round(humidity, 1),
		Pressure:    round(hPa*inHgPerHPa, 2),
		PM1:         float64(pm.PM1),
		PM25:        float64(pm.PM25),
		PM10:        float64(pm.PM10),
	}
	if e.Gas != nil {
		g := round(*e.Gas, 0)
		r.GasResistance = &g
	}
	return r
}
