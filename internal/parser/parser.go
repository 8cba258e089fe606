// internal/parser/parser.go
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FramePrefix marks a voltage/temperature response (3 bytes, hex encoded).
const FramePrefix = "d15507"

// Field offsets inside the 32-character hex rendering of a decrypted frame.
const (
	tempStart, tempEnd       = 8, 10
	powerStart, powerEnd     = 12, 14
	voltageStart, voltageEnd = 15, 18
)

var (
	ErrUnrecognizedFrame = errors.New("parser: unrecognized frame")
	ErrMalformedField    = errors.New("parser: malformed field")
)

// Reading is one decoded status frame.
type Reading struct {
	Voltage     float64 // volts, centivolt resolution
	Temperature int     // raw device units
	Power       int     // raw device units
}

// Centivolts returns the voltage in the device's fixed-point unit.
func (r Reading) Centivolts() uint16 {
	return uint16(r.Voltage*100 + 0.5)
}

// IsZero reports whether voltage and temperature are both zero.
func (r Reading) IsZero() bool {
	return r.Voltage == 0 && r.Temperature == 0
}

// Parse decodes the hex rendering of a decrypted frame.
// On any error the returned Reading is the zero value.
func Parse(hex string) (Reading, error) {
	if !strings.HasPrefix(hex, FramePrefix) {
		return Reading{}, ErrUnrecognizedFrame
	}

	temp, err := field(hex, "temperature", tempStart, tempEnd)
	if err != nil {
		return Reading{}, err
	}
	power, err := field(hex, "power", powerStart, powerEnd)
	if err != nil {
		return Reading{}, err
	}
	volts, err := field(hex, "voltage", voltageStart, voltageEnd)
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		Voltage:     float64(volts) / 100.0,
		Temperature: int(temp),
		Power:       int(power),
	}, nil
}

func field(hex, name string, start, end int) (uint64, error) {
	if len(hex) < end {
		return 0, fmt.Errorf("%w: %s: frame too short (%d chars)", ErrMalformedField, name, len(hex))
	}
	v, err := strconv.ParseUint(hex[start:end], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedField, name, hex[start:end])
	}
	return v, nil
}
