package sensor

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

var testCalib = bme680Calib{
	T1: 26112, T2: 26366, T3: 3,
	P1: 36243, P2: -10460, P3: 88, P4: 7244, P5: -133, P6: 30, P7: 27, P8: -3263, P9: -2930, P10: 30,
	H1: 799, H2: 1018, H3: 0, H4: 45, H5: 20, H6: 120, H7: -100,
	GH1: -30, GH2: -12490, GH3: 18,
	ResHeatRange: 1, ResHeatVal: 42, RangeSwitchErr: 0,
}

// calibBytes lays c out the way the chip stores it in 0x8A.., 0xE1.. and 0x00..
func calibBytes(c bme680Calib) (c1, c2, c3 []byte) {
	le := binary.LittleEndian
	c1 = make([]byte, 23)
	le.PutUint16(c1[0:2], uint16(c.T2))
	c1[2] = byte(c.T3)
	le.PutUint16(c1[4:6], c.P1)
	le.PutUint16(c1[6:8], uint16(c.P2))
	c1[8] = byte(c.P3)
	le.PutUint16(c1[10:12], uint16(c.P4))
	le.PutUint16(c1[12:14], uint16(c.P5))
	c1[14] = byte(c.P7)
	c1[15] = byte(c.P6)
	le.PutUint16(c1[18:20], uint16(c.P8))
	le.PutUint16(c1[20:22], uint16(c.P9))
	c1[22] = c.P10

	c2 = make([]byte, 14)
	c2[0] = byte(c.H2 >> 4)
	c2[1] = byte(c.H2&0x0F)<<4 | byte(c.H1&0x0F)
	c2[2] = byte(c.H1 >> 4)
	c2[3] = byte(c.H3)
	c2[4] = byte(c.H4)
	c2[5] = byte(c.H5)
	c2[6] = c.H6
	c2[7] = byte(c.H7)
	le.PutUint16(c2[8:10], c.T1)
	le.PutUint16(c2[10:12], uint16(c.GH2))
	c2[12] = byte(c.GH1)
	c2[13] = byte(c.GH3)

	c3 = make([]byte, 5)
	c3[0] = byte(c.ResHeatVal)
	c3[2] = c.ResHeatRange << 4
	c3[4] = byte(c.RangeSwitchErr) << 4
	return c1, c2, c3
}

func fieldBytes(temp, press uint32, hum, gas uint16, gasRange uint8) []byte {
	buf := make([]byte, bme680FieldLen)
	buf[0] = bme680NewData
	buf[2], buf[3], buf[4] = byte(press>>12), byte(press>>4), byte(press<<4)
	buf[5], buf[6], buf[7] = byte(temp>>12), byte(temp>>4), byte(temp<<4)
	buf[8], buf[9] = byte(hum>>8), byte(hum)
	buf[13] = byte(gas >> 2)
	buf[14] = byte(gas<<6) | bme680GasOK | bme680HeatOK | gasRange
	return buf
}

func TestParseBME680Calib(t *testing.T) {
	got, err := parseBME680Calib(calibBytes(testCalib))
	if err != nil {
		t.Fatal(err)
	}
	if got != testCalib {
		t.Errorf("calib = %+v\nwant %+v", got, testCalib)
	}

	if _, err := parseBME680Calib(make([]byte, 22), make([]byte, 14), make([]byte, 5)); !errors.Is(err, errBME680) {
		t.Errorf("short block err = %v", err)
	}
}

func TestParseBME680Calib_SwitchErrorIsSigned(t *testing.T) {
	c1, c2, c3 := calibBytes(testCalib)
	c3[4] = 0xF3
	got, err := parseBME680Calib(c1, c2, c3)
	if err != nil {
		t.Fatal(err)
	}
	if got.RangeSwitchErr != -1 {
		t.Errorf("range switch error = %d, want -1", got.RangeSwitchErr)
	}
}

func TestBME680Compensation(t *testing.T) {
	c := testCalib
	tf := c.tFine(502030)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"temperature °C", c.temperature(tf), 26.48048328116056},
		{"pressure Pa", c.pressure(tf, 350000), 100317.93502909505},
		{"humidity %RH", c.humidity(tf, 21000), 41.93180745097634},
		{"gas Ω", c.gasResistance(400, 5), 271154.7734931718},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-6*math.Abs(tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if h := c.humidity(tf, 65535); h != 100 {
		t.Errorf("saturated humidity = %v, want 100", h)
	}
	if h := c.humidity(tf, 0); h != 0 {
		t.Errorf("zero humidity = %v, want 0", h)
	}
}

func TestBME680Heater(t *testing.T) {
	if got := testCalib.heaterResistance(320, 25); got != 116 {
		t.Errorf("res_heat = %d, want 116", got)
	}
	if a, b := testCalib.heaterResistance(400, 25), testCalib.heaterResistance(500, 25); a != b {
		t.Errorf("target above 400°C not capped: %d != %d", a, b)
	}

	waits := []struct {
		ms   int
		want uint8
	}{
		{63, 0x3F},
		{150, 0x65},
		{4032, 0xFF},
		{5000, 0xFF},
	}
	for _, w := range waits {
		if got := gasWaitCode(w.ms); got != w.want {
			t.Errorf("gasWaitCode(%d) = %#02x, want %#02x", w.ms, got, w.want)
		}
	}
}

func TestParseBME680Field(t *testing.T) {
	raw, err := parseBME680Field(fieldBytes(502030, 350000, 21000, 400, 5))
	if err != nil {
		t.Fatal(err)
	}
	want := bme680Raw{Temp: 502030, Press: 350000, Hum: 21000, Gas: 400, GasRange: 5, GasValid: true, HeatStable: true}
	if raw != want {
		t.Errorf("raw = %+v, want %+v", raw, want)
	}

	stale := fieldBytes(502030, 350000, 21000, 400, 5)
	stale[0] = 0
	if _, err := parseBME680Field(stale); !errors.Is(err, errBME680) {
		t.Errorf("stale field err = %v", err)
	}
}

func bme680InitOps(addr uint16) []i2ctest.IO {
	c1, c2, c3 := calibBytes(testCalib)
	return []i2ctest.IO{
		{Addr: addr, W: []byte{bme680RegChipID}, R: []byte{chipIDBME680}},
		{Addr: addr, W: []byte{bme680RegReset, bme680SoftReset}},
		{Addr: addr, W: []byte{0x8A}, R: c1},
		{Addr: addr, W: []byte{0xE1}, R: c2},
		{Addr: addr, W: []byte{0x00}, R: c3},
		{Addr: addr, W: []byte{
			bme680RegCtrlHum, bme680OsrsH,
			bme680RegConfig, bme680Filter << 2,
			bme680RegGasWait0, 0x65,
			bme680RegCtrlGas1, bme680RunGas,
		}},
	}
}

func TestOpenOnBus_BME680(t *testing.T) {
	const envAddr, pmAddr = 0x77, 0x12
	ops := bme680InitOps(envAddr)
	ops = append(ops,
		i2ctest.IO{Addr: pmAddr, R: pmFrame(1, 2, 3)},
		// Read
		i2ctest.IO{Addr: envAddr, W: []byte{bme680RegResHeat0, 116, bme680RegCtrlMeas, bme680OsrsT<<5 | bme680OsrsP<<2 | bme680Forced}},
		i2ctest.IO{Addr: envAddr, W: []byte{bme680RegField0}, R: fieldBytes(502030, 350000, 21000, 400, 5)},
		i2ctest.IO{Addr: pmAddr, R: pmFrame(4, 9, 14)},
		// Close
		i2ctest.IO{Addr: envAddr, W: []byte{bme680RegCtrlMeas, 0}},
	)
	bus := &i2ctest.Playback{Ops: ops}

	h, err := openOnBus(bus, envAddr, pmAddr)
	if err != nil {
		t.Fatal(err)
	}
	h.env.(*bme680).sleep = func(time.Duration) {}
	if h.Name() != "bme680+pmsa003i" {
		t.Errorf("name = %q", h.Name())
	}

	r, err := h.Read(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if r.Temperature != 79.7 || r.Humidity != 41.9 || r.Pressure != 29.62 {
		t.Errorf("env = %v°F %v%% %vinHg, want 79.7 41.9 29.62", r.Temperature, r.Humidity, r.Pressure)
	}
	if r.GasResistance == nil || *r.GasResistance != 271155 {
		t.Errorf("gas = %v, want 271155", r.GasResistance)
	}
	if r.PM25 != 9 {
		t.Errorf("pm2.5 = %v, want 9", r.PM25)
	}
	if err := h.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestOpenEnv_UnknownChip(t *testing.T) {
	bus := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: 0x77, W: []byte{bme680RegChipID}, R: []byte{0x42}},
	}}
	if _, err := openEnv(bus, 0x77); err == nil {
		t.Fatal("unknown chip id accepted")
	}
}
