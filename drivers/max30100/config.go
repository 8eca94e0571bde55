package max30100

import (
	"fmt"

	"iothat-go/drivers/devio"
)

// Mode is the MODE[2:0] field.
type Mode uint8

const (
	ModeHeartRate Mode = 0x02
	ModeSpO2      Mode = 0x03
)

// SampleRate is SPO2_SR.
type SampleRate uint8

const (
	Rate50 SampleRate = iota
	Rate100
	Rate167
	Rate200
	Rate400
	Rate600
	Rate800
	Rate1000
)

// PulseWidth is LED_PW; it also fixes the ADC resolution.
type PulseWidth uint8

const (
	PW200us  PulseWidth = iota // 13 bit
	PW400us                    // 14 bit
	PW800us                    // 15 bit
	PW1600us                   // 16 bit
)

// Current is an LED current step, 0 (off) through 15 (50 mA).
type Current uint8

const (
	CurrentOff  Current = 0
	Current14mA Current = 4 // 14.2 mA
	CurrentMax  Current = 15
)

// Settings is the full sensor configuration.
type Settings struct {
	Mode       Mode
	HighRes    bool
	SampleRate SampleRate
	PulseWidth PulseWidth
	RedCurrent Current
	IRCurrent  Current
}

// DefaultSettings: SpO2, high resolution, 100 sps, 1600 us, both LEDs 14.2 mA.
func DefaultSettings() Settings {
	return Settings{
		Mode:       ModeSpO2,
		HighRes:    true,
		SampleRate: Rate100,
		PulseWidth: PW1600us,
		RedCurrent: Current14mA,
		IRCurrent:  Current14mA,
	}
}

func (s Settings) Validate() error {
	switch {
	case s.Mode != ModeHeartRate && s.Mode != ModeSpO2:
		return fmt.Errorf("max30100: mode %d: %w", s.Mode, devio.ErrInvalidParams)
	case s.SampleRate > Rate1000:
		return fmt.Errorf("max30100: sample rate %d: %w", s.SampleRate, devio.ErrInvalidParams)
	case s.PulseWidth > PW1600us:
		return fmt.Errorf("max30100: pulse width %d: %w", s.PulseWidth, devio.ErrInvalidParams)
	case s.RedCurrent > CurrentMax || s.IRCurrent > CurrentMax:
		return fmt.Errorf("max30100: led current: %w", devio.ErrInvalidParams)
	}
	return nil
}

// Words are the three configuration registers.
type Words struct {
	Mode, SpO2, LED byte
}

func (s Settings) Encode() Words {
	spo2 := byte(s.SampleRate)<<spo2RateShift | byte(s.PulseWidth)
	if s.HighRes {
		spo2 |= spo2HiRes
	}
	return Words{
		Mode: byte(s.Mode) & modeMask,
		SpO2: spo2,
		LED:  byte(s.RedCurrent)<<4 | byte(s.IRCurrent)&0x0F,
	}
}

func Decode(w Words) Settings {
	return Settings{
		Mode:       Mode(w.Mode & modeMask),
		HighRes:    w.SpO2&spo2HiRes != 0,
		SampleRate: SampleRate(w.SpO2>>spo2RateShift) & 0x07,
		PulseWidth: PulseWidth(w.SpO2 & 0x03),
		RedCurrent: Current(w.LED >> 4),
		IRCurrent:  Current(w.LED & 0x0F),
	}
}
