package veml6075

import (
	"fmt"
	"time"

	"iothat-go/drivers/devio"
)

// IntegrationTime selects the UV_IT field.
type IntegrationTime uint8

const (
	IT50ms IntegrationTime = iota
	IT100ms
	IT200ms
	IT400ms
	IT800ms
)

// Duration is the nominal conversion time.
func (it IntegrationTime) Duration() time.Duration {
	return (50 * time.Millisecond) << it
}

// Settings are the UV_CONF options.
type Settings struct {
	IntegrationTime IntegrationTime
	// HighDynamic selects the high dynamic range setting.
	HighDynamic bool
	// ActiveForce makes each read trigger one conversion.
	ActiveForce bool
}

// DefaultSettings: 100 ms, normal dynamic, continuous.
func DefaultSettings() Settings {
	return Settings{IntegrationTime: IT100ms}
}

func (s Settings) Validate() error {
	if s.IntegrationTime > IT800ms {
		return fmt.Errorf("veml6075: integration time %d: %w", s.IntegrationTime, devio.ErrInvalidParams)
	}
	return nil
}

// Encode returns the UV_CONF low byte. Trigger and shutdown stay clear.
func (s Settings) Encode() byte {
	b := (byte(s.IntegrationTime) << confITShift) & confITMask
	if s.HighDynamic {
		b |= confHD
	}
	if s.ActiveForce {
		b |= confAF
	}
	return b
}

// Decode is the inverse of Encode; trigger and shutdown are ignored.
func Decode(b byte) Settings {
	return Settings{
		IntegrationTime: IntegrationTime((b & confITMask) >> confITShift),
		HighDynamic:     b&confHD != 0,
		ActiveForce:     b&confAF != 0,
	}
}
