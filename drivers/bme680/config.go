package bme680

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

// Filter is the IIR coefficient selector: 0, 1, 3, 7, 15, 31, 63, 127.
type Filter uint8

const (
	FilterOff Filter = iota
	Filter1
	Filter3
	Filter7
	Filter15
	Filter31
	Filter63
	Filter127
)

// MaxHeaterTemp is the highest heater target the encoding accepts (°C).
const MaxHeaterTemp = 400

// Gas selects the heater set-point 0 profile.
type Gas struct {
	Enabled bool
	// HeaterTemp is the target plate temperature in °C, clamped to 400.
	HeaterTemp uint16
	// HeaterDuration is the heating time in ms; 252 and above saturate.
	HeaterDuration uint16
}

// Settings are the sensor options. The BME680 only converts in forced mode,
// so there is no mode field.
type Settings struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	Gas         Gas
}

// DefaultSettings: T x8, P x16, H x8, filter 7, gas on at 320 °C for 150 ms.
func DefaultSettings() Settings {
	return Settings{
		Temperature: X8,
		Pressure:    X16,
		Humidity:    X8,
		Filter:      Filter7,
		Gas:         Gas{Enabled: true, HeaterTemp: 320, HeaterDuration: 150},
	}
}

func (s Settings) Validate() error {
	for _, os := range []Oversampling{s.Temperature, s.Pressure, s.Humidity} {
		if os > X16 {
			return fmt.Errorf("bme680: oversampling %d: %w", os, devio.ErrInvalidParams)
		}
	}
	if s.Filter > Filter127 {
		return fmt.Errorf("bme680: filter %d: %w", s.Filter, devio.ErrInvalidParams)
	}
	return nil
}

// Words is the encoded control block. CtrlMeas carries sleep mode; the
// forced bit is added per measurement.
type Words struct {
	CtrlHum  byte
	CtrlMeas byte
	Config   byte
	CtrlGas1 byte
}

// Encode packs the oversampling, filter and run_gas fields. Heater profile
// registers are encoded separately by HeaterResistance and HeatDuration.
func (s Settings) Encode() Words {
	w := Words{
		CtrlHum:  byte(s.Humidity) & 0x07,
		CtrlMeas: (byte(s.Temperature)&0x07)<<5 | (byte(s.Pressure)&0x07)<<2,
		Config:   (byte(s.Filter) & 0x07) << 2,
	}
	if s.Gas.Enabled {
		w.CtrlGas1 = ctrlGas1RunGas // nb_conv = 0
	}
	return w
}

// Decode is the inverse of Encode for the register-held fields.
func Decode(w Words) Settings {
	return Settings{
		Humidity:    Oversampling(w.CtrlHum & 0x07),
		Temperature: Oversampling(w.CtrlMeas >> 5 & 0x07),
		Pressure:    Oversampling(w.CtrlMeas >> 2 & 0x07),
		Filter:      Filter(w.Config >> 2 & 0x07),
		Gas:         Gas{Enabled: w.CtrlGas1&ctrlGas1RunGas != 0},
	}
}
