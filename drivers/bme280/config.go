package bme280

import (
	"fmt"

	"iothat-go/drivers/devio"
)

// Oversampling per channel. Skipped disables the channel.
type Oversampling uint8

const (
	Skipped Oversampling = iota
	X1
	X2
	X4
	X8
	X16
)

// Mode is the power mode in ctrl_meas bits 0-1.
type Mode uint8

const (
	ModeSleep  Mode = 0
	ModeForced Mode = 1
	ModeNormal Mode = 3
)

// Standby is the inactive period between normal-mode measurements.
type Standby uint8

const (
	Standby0_5ms Standby = iota
	Standby62_5ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby10ms
	Standby20ms
)

// Filter is the IIR filter coefficient.
type Filter uint8

const (
	FilterOff Filter = iota
	Filter2
	Filter4
	Filter8
	Filter16
)

// Settings are the sensor options that end up in the three control registers.
type Settings struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Mode        Mode
	Standby     Standby
	Filter      Filter
}

// DefaultSettings: x4 everywhere, normal mode, 1 s standby, filter 4.
func DefaultSettings() Settings {
	return Settings{
		Temperature: X4,
		Pressure:    X4,
		Humidity:    X4,
		Mode:        ModeNormal,
		Standby:     Standby1000ms,
		Filter:      Filter4,
	}
}

// Validate rejects values outside the documented enums.
func (s Settings) Validate() error {
	for _, os := range []Oversampling{s.Temperature, s.Pressure, s.Humidity} {
		if os > X16 {
			return fmt.Errorf("bme280: oversampling %d: %w", os, devio.ErrInvalidParams)
		}
	}
	switch s.Mode {
	case ModeSleep, ModeForced, ModeNormal:
	default:
		return fmt.Errorf("bme280: mode %d: %w", s.Mode, devio.ErrInvalidParams)
	}
	if s.Standby > Standby20ms {
		return fmt.Errorf("bme280: standby %d: %w", s.Standby, devio.ErrInvalidParams)
	}
	if s.Filter > Filter16 {
		return fmt.Errorf("bme280: filter %d: %w", s.Filter, devio.ErrInvalidParams)
	}
	return nil
}

// Words is the encoded configuration: ctrl_hum, ctrl_meas and config.
type Words struct {
	CtrlHum  byte
	CtrlMeas byte
	Config   byte
}

// Encode packs s into register words. Only documented bits are set; the
// SPI 3-wire bit stays clear.
func (s Settings) Encode() Words {
	return Words{
		CtrlHum:  byte(s.Humidity) & 0x07,
		CtrlMeas: (byte(s.Temperature)&0x07)<<5 | (byte(s.Pressure)&0x07)<<2 | byte(s.Mode)&0x03,
		Config:   (byte(s.Standby)&0x07)<<5 | (byte(s.Filter)&0x07)<<2,
	}
}

// Decode unpacks register words.
func Decode(w Words) Settings {
	return Settings{
		Humidity:    Oversampling(w.CtrlHum & 0x07),
		Temperature: Oversampling(w.CtrlMeas >> 5 & 0x07),
		Pressure:    Oversampling(w.CtrlMeas >> 2 & 0x07),
		Mode:        Mode(w.CtrlMeas & 0x03),
		Standby:     Standby(w.Config >> 5 & 0x07),
		Filter:      Filter(w.Config >> 2 & 0x07),
	}
}
