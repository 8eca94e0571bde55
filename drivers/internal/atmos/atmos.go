// Package atmos holds barometric helpers shared by the Bosch drivers.
package atmos

import (
	"errors"
	"math"
)

// StandardSeaLevelHPa is the ISA reference pressure.
const StandardSeaLevelHPa = 1013.25

// ErrNonPositivePressure is returned for pressures outside the formula's domain.
var ErrNonPositivePressure = errors.New("atmos: pressure must be positive")

// Altitude returns metres above the reference level for a pressure in Pa and
// a reference sea-level pressure in hPa.
func Altitude(pressurePa, seaLevelHPa float64) (float64, error) {
	if pressurePa <= 0 || seaLevelHPa <= 0 {
		return 0, ErrNonPositivePressure
	}
	return 44330 * (1 - math.Pow(pressurePa/100/seaLevelHPa, 0.1903)), nil
}
