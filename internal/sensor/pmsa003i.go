package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PMSA003I I2C frame: 0x42 0x4d, big-endian length (28), 13 data words,
// big-endian checksum of bytes 0..29.
const pmFrameLen = 32

var errPMFrame = errors.New("pmsa003i: bad frame")

// PMData holds the "standard particle" concentrations in µg/m³.
type PMData struct {
	PM1  uint16
	PM25 uint16
	PM10 uint16
}

func parsePMFrame(buf []byte) (PMData, error) {
	if len(buf) < pmFrameLen {
		return PMData{}, fmt.Errorf("%w: %d bytes", errPMFrame, len(buf))
	}
	if buf[0] != 0x42 || buf[1] != 0x4d {
		return PMData{}, fmt.Errorf("%w: header %#02x %#02x", errPMFrame, buf[0], buf[1])
	}
	if n := binary.BigEndian.Uint16(buf[2:4]); n != pmFrameLen-4 {
		return PMData{}, fmt.Errorf("%w: length %d", errPMFrame, n)
	}
	var sum uint16
	for _, b := range buf[:pmFrameLen-2] {
		sum += uint16(b)
	}
	if want := binary.BigEndian.Uint16(buf[30:32]); sum != want {
		return PMData{}, fmt.Errorf("%w: checksum %#04x, want %#04x", errPMFrame, sum, want)
	}
	return PMData{
		PM1:  binary.BigEndian.Uint16(buf[4:6]),
		PM25: binary.BigEndian.Uint16(buf[6:8]),
		PM10: binary.BigEndian.Uint16(buf[8:10]),
	}, nil
}
