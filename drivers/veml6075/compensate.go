package veml6075

import "iothat-go/x/mathx"

// Raw holds the five 16-bit channels.
type Raw struct {
	UVA   uint16
	Dummy uint16
	UVB   uint16
	Comp1 uint16 // visible compensation
	Comp2 uint16 // infrared compensation
}

// Coefficients for the cross-talk compensation and index conversion.
type Coefficients struct {
	A, B float64 // UVA visible / IR
	C, D float64 // UVB visible / IR

	UVAResponsivity float64
	UVBResponsivity float64

	// K1 and K2 are per-installation correction factors for the
	// per-channel indices.
	K1, K2 float64
}

// DefaultCoefficients are the application-note values for an open sensor.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		A: 2.22, B: 1.33,
		C: 2.95, D: 1.74,
		UVAResponsivity: 0.001461,
		UVBResponsivity: 0.002591,
		K1:              1,
		K2:              1,
	}
}

// UVA returns the compensated UVA count.
func (c Coefficients) UVA(r Raw) float64 {
	return float64(r.UVA) - c.A*float64(r.Comp1) - c.B*float64(r.Comp2)
}

// UVB returns the compensated UVB count.
func (c Coefficients) UVB(r Raw) float64 {
	return float64(r.UVB) - c.C*float64(r.Comp1) - c.D*float64(r.Comp2)
}

// UVIndexA is the index from the UVA channel alone.
func (c Coefficients) UVIndexA(r Raw) float64 {
	return c.UVA(r) * c.K1 * c.UVAResponsivity
}

// UVIndexB is the index from the UVB channel alone.
func (c Coefficients) UVIndexB(r Raw) float64 {
	return c.UVB(r) * c.K2 * c.UVBResponsivity
}

// AverageUVIndex dark-corrects every channel with the dummy reading,
// averages the two indices and floors the result at 0.
func (c Coefficients) AverageUVIndex(r Raw) float64 {
	dummy := float64(r.Dummy)
	uva := float64(r.UVA) - dummy
	uvb := float64(r.UVB) - dummy
	c1 := float64(r.Comp1) - dummy
	c2 := float64(r.Comp2) - dummy

	uvaComp := uva - c.A*c1 - c.B*c2
	uvbComp := uvb - c.C*c1 - c.D*c2
	uvi := ((uvbComp * c.UVBResponsivity) + (uvaComp * c.UVAResponsivity)) / 2
	return mathx.Floor(uvi, 0)
}
