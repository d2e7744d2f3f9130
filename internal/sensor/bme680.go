package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Chip ids read from register 0xD0.
const (
	chipIDBMP280 = 0x58
	chipIDBME280 = 0x60
	chipIDBME680 = 0x61
)

const (
	bme680RegChipID   = 0xD0
	bme680RegReset    = 0xE0
	bme680RegCtrlHum  = 0x72
	bme680RegCtrlMeas = 0x74
	bme680RegConfig   = 0x75
	bme680RegCtrlGas1 = 0x71
	bme680RegResHeat0 = 0x5A
	bme680RegGasWait0 = 0x64
	bme680RegField0   = 0x1D

	bme680FieldLen  = 15
	bme680SoftReset = 0xB6

	// T x8, P x4, H x2, IIR filter 3, forced mode.
	bme680OsrsT   = 4
	bme680OsrsP   = 3
	bme680OsrsH   = 2
	bme680Filter  = 2
	bme680Forced  = 1
	bme680RunGas  = 1 << 4
	bme680NewData = 1 << 7
	bme680GasOK   = 1 << 5
	bme680HeatOK  = 1 << 4

	bme680HeaterTemp = 320 // °C
	bme680HeaterMS   = 150
)

var errBME680 = errors.New("bme680")

// bme680Calib holds the factory trimming parameters.
type bme680Calib struct {
	T1             uint16
	T2             int16
	T3             int8
	P1             uint16
	P2             int16
	P3             int8
	P4, P5         int16
	P6, P7         int8
	P8, P9         int16
	P10            uint8
	H1, H2         uint16
	H3, H4, H5     int8
	H6             uint8
	H7             int8
	GH1            int8
	GH2            int16
	GH3            int8
	ResHeatRange   uint8
	ResHeatVal     int8
	RangeSwitchErr int8
}

// parseBME680Calib decodes the three calibration blocks: 23 bytes from
// 0x8A, 14 bytes from 0xE1 and 5 bytes from 0x00.
func parseBME680Calib(c1, c2, c3 []byte) (bme680Calib, error) {
	if len(c1) < 23 || len(c2) < 14 || len(c3) < 5 {
		return bme680Calib{}, fmt.Errorf("%w: short calibration %d/%d/%d", errBME680, len(c1), len(c2), len(c3))
	}
	le := binary.LittleEndian
	return bme680Calib{
		T2:             int16(le.Uint16(c1[0:2])),
		T3:             int8(c1[2]),
		P1:             le.Uint16(c1[4:6]),
		P2:             int16(le.Uint16(c1[6:8])),
		P3:             int8(c1[8]),
		P4:             int16(le.Uint16(c1[10:12])),
		P5:             int16(le.Uint16(c1[12:14])),
		P7:             int8(c1[14]),
		P6:             int8(c1[15]),
		P8:             int16(le.Uint16(c1[18:20])),
		P9:             int16(le.Uint16(c1[20:22])),
		P10:            c1[22],
		H2:             uint16(c2[0])<<4 | uint16(c2[1])>>4,
		H1:             uint16(c2[2])<<4 | uint16(c2[1]&0x0F),
		H3:             int8(c2[3]),
		H4:             int8(c2[4]),
		H5:             int8(c2[5]),
		H6:             c2[6],
		H7:             int8(c2[7]),
		T1:             le.Uint16(c2[8:10]),
		GH2:            int16(le.Uint16(c2[10:12])),
		GH1:            int8(c2[12]),
		GH3:            int8(c2[13]),
		ResHeatVal:     int8(c3[0]),
		ResHeatRange:   (c3[2] & 0x30) >> 4,
		RangeSwitchErr: int8(c3[4]&0xF0) / 16,
	}, nil
}

// bme680Raw is one forced-mode field.
type bme680Raw struct {
	Temp, Press uint32
	Hum         uint16
	Gas         uint16
	GasRange    uint8
	GasValid    bool
	HeatStable  bool
}

func parseBME680Field(buf []byte) (bme680Raw, error) {
	if len(buf) < bme680FieldLen {
		return bme680Raw{}, fmt.Errorf("%w: field %d bytes", errBME680, len(buf))
	}
	if buf[0]&bme680NewData == 0 {
		return bme680Raw{}, fmt.Errorf("%w: no new data", errBME680)
	}
	return bme680Raw{
		Press:      uint32(buf[2])<<12 | uint32(buf[3])<<4 | uint32(buf[4])>>4,
		Temp:       uint32(buf[5])<<12 | uint32(buf[6])<<4 | uint32(buf[7])>>4,
		Hum:        uint16(buf[8])<<8 | uint16(buf[9]),
		Gas:        uint16(buf[13])<<2 | uint16(buf[14])>>6,
		GasRange:   buf[14] & 0x0F,
		GasValid:   buf[14]&bme680GasOK != 0,
		HeatStable: buf[14]&bme680HeatOK != 0,
	}, nil
}

// tFine returns the fine temperature shared by the other compensations.
func (c bme680Calib) tFine(adc uint32) float64 {
	t := float64(adc)
	v1 := (t/16384 - float64(c.T1)/1024) * float64(c.T2)
	d := t/131072 - float64(c.T1)/8192
	v2 := d * d * float64(c.T3) * 16
	return v1 + v2
}

// temperature returns °C.
func (c bme680Calib) temperature(tFine float64) float64 { return tFine / 5120 }

// pressure returns Pa.
func (c bme680Calib) pressure(tFine float64, adc uint32) float64 {
	v1 := tFine/2 - 64000
	v2 := v1 * v1 * float64(c.P6) / 131072
	v2 += v1 * float64(c.P5) * 2
	v2 = v2/4 + float64(c.P4)*65536
	v1 = (float64(c.P3)*v1*v1/16384 + float64(c.P2)*v1) / 524288
	v1 = (1 + v1/32768) * float64(c.P1)
	if v1 == 0 {
		return 0
	}
	p := 1048576 - float64(adc)
	p = (p - v2/4096) * 6250 / v1
	v1 = float64(c.P9) * p * p / 2147483648
	v2 = p * float64(c.P8) / 32768
	p256 := p / 256
	v3 := p256 * p256 * p256 * float64(c.P10) / 131072
	return p + (v1+v2+v3+float64(c.P7)*128)/16
}

// humidity returns %RH clamped to 0..100.
func (c bme680Calib) humidity(tFine float64, adc uint16) float64 {
	tc := tFine / 5120
	v1 := float64(adc) - (float64(c.H1)*16 + float64(c.H3)/2*tc)
	v2 := v1 * (float64(c.H2) / 262144 * (1 + float64(c.H4)/16384*tc + float64(c.H5)/1048576*tc*tc))
	v3 := float64(c.H6) / 16384
	v4 := float64(c.H7) / 2097152
	h := v2 + (v3+v4*tc)*v2*v2
	return math.Min(math.Max(h, 0), 100)
}

var (
	gasRangeK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasRangeK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

// gasResistance returns Ω.
func (c bme680Calib) gasResistance(adc uint16, gasRange uint8) float64 {
	r := gasRange & 0x0F
	v1 := 1340 + 5*float64(c.RangeSwitchErr)
	v2 := v1 * (1 + gasRangeK1[r]/100)
	v3 := 1 + gasRangeK2[r]/100
	return 1 / (v3 * 0.000000125 * float64(uint32(1)<<r) * ((float64(adc)-512)/v2 + 1))
}

// heaterResistance returns the res_heat_0 code for a target plate
// temperature at the given ambient temperature.
func (c bme680Calib) heaterResistance(target, ambient float64) uint8 {
	target = math.Min(target, 400)
	v1 := float64(c.GH1)/16 + 49
	v2 := float64(c.GH2)/32768*0.0005 + 0.00235
	v3 := float64(c.GH3) / 1024
	v4 := v1 * (1 + v2*target)
	v5 := v4 + v3*ambient
	return uint8(3.4 * (v5*(4/(4+float64(c.ResHeatRange)))*(1/(1+float64(c.ResHeatVal)*0.002)) - 25))
}

// gasWaitCode encodes a heater duration as a 6-bit value and a 2-bit
// multiplier of 4.
func gasWaitCode(ms int) uint8 {
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor int
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return uint8(ms + factor*64)
}

// bme680 is a forced-mode BME680 on an I2C device.
type bme680 struct {
	dev     *i2c.Dev
	calib   bme680Calib
	ambient float64
	sleep   func(time.Duration)
}

func newBME680(dev *i2c.Dev) (*bme680, error) {
	d := &bme680{dev: dev, ambient: 25, sleep: time.Sleep}
	if err := d.write(bme680RegReset, bme680SoftReset); err != nil {
		return nil, err
	}
	d.sleep(10 * time.Millisecond)
	c1, err := d.read(0x8A, 23)
	if err != nil {
		return nil, err
	}
	c2, err := d.read(0xE1, 14)
	if err != nil {
		return nil, err
	}
	c3, err := d.read(0x00, 5)
	if err != nil {
		return nil, err
	}
	if d.calib, err = parseBME680Calib(c1, c2, c3); err != nil {
		return nil, err
	}
	err = d.write(bme680RegCtrlHum, bme680OsrsH,
		bme680RegConfig, bme680Filter << 2,
		bme680RegGasWait0, gasWaitCode(bme680HeaterMS),
		bme680RegCtrlGas1, bme680RunGas)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *bme680) String() string { return "bme680" }

// sense runs one forced measurement including the gas heater cycle.
func (d *bme680) sense() (envSample, error) {
	heat := d.calib.heaterResistance(bme680HeaterTemp, d.ambient)
	if err := d.write(bme680RegResHeat0, heat, bme680RegCtrlMeas, bme680OsrsT<<5|bme680OsrsP<<2|bme680Forced); err != nil {
		return envSample{}, err
	}
	d.sleep(time.Duration(bme680HeaterMS+50) * time.Millisecond)

	var raw bme680Raw
	var err error
	for range 10 {
		var buf []byte
		if buf, err = d.read(bme680RegField0, bme680FieldLen); err != nil {
			return envSample{}, err
		}
		if raw, err = parseBME680Field(buf); err == nil {
			break
		}
		d.sleep(10 * time.Millisecond)
	}
	if err != nil {
		return envSample{}, err
	}

	tf := d.calib.tFine(raw.Temp)
	c := d.calib.temperature(tf)
	d.ambient = c
	s := envSample{Env: physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(c*float64(physic.Kelvin)),
		Pressure:    physic.Pressure(d.calib.pressure(tf, raw.Press) * float64(physic.Pascal)),
		Humidity:    physic.RelativeHumidity(d.calib.humidity(tf, raw.Hum) * float64(physic.PercentRH)),
	}}
	if raw.GasValid && raw.HeatStable {
		g := d.calib.gasResistance(raw.Gas, raw.GasRange)
		s.Gas = &g
	}
	return s, nil
}

// halt leaves the chip in sleep mode with the heater off.
func (d *bme680) halt() error {
	return d.write(bme680RegCtrlMeas, 0)
}

func (d *bme680) read(reg byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return nil, fmt.Errorf("%w: read %#02x: %w", errBME680, reg, err)
	}
	return buf, nil
}

// write sends register/value pairs in one transaction.
func (d *bme680) write(pairs ...byte) error {
	if err := d.dev.Tx(pairs, nil); err != nil {
		return fmt.Errorf("%w: write %#02x: %w", errBME680, pairs[0], err)
	}
	return nil
}

// readChipID returns register 0xD0 of the device.
func readChipID(dev *i2c.Dev) (byte, error) {
	var id [1]byte
	if err := dev.Tx([]byte{bme680RegChipID}, id[:]); err != nil {
		return 0, fmt.Errorf("read chip id: %w", err)
	}
	return id[0], nil
}
