package bme680

import (
	"iothat-go/drivers/devio"
	"iothat-go/drivers/internal/atmos"
	"iothat-go/x/mathx"
)

// StandardSeaLevelHPa is the default altitude reference.
const StandardSeaLevelHPa = atmos.StandardSeaLevelHPa

// Fine is the t_fine carry produced by temperature compensation.
type Fine float64

// Raw is one burst of ADC counts.
type Raw struct {
	Pressure    uint32 // 20 bit
	Temperature uint32 // 20 bit
	Humidity    uint16
	Gas         uint16 // 10 bit
	GasRange    uint8  // 4 bit
	GasValid    bool
	HeatStable  bool
}

func parseRaw(b []byte) Raw {
	return Raw{
		Pressure:    devio.U20(b[0], b[1], b[2]),
		Temperature: devio.U20(b[3], b[4], b[5]),
		Humidity:    devio.U16BE(b[6:]),
		Gas:         uint16(b[11])<<2 | uint16(b[12])>>6,
		GasRange:    b[12] & gasRangeMask,
		GasValid:    b[12]&gasValid != 0,
		HeatStable:  b[12]&heatStable != 0,
	}
}

// Measurement in physical units. GasResistance is 0 when no gas
// conversion ran.
type Measurement struct {
	Temperature   float64 // °C
	Pressure      float64 // Pa
	Humidity      float64 // %RH
	GasResistance float64 // Ohm
	GasValid      bool
	HeatStable    bool
}

// Compensate converts one burst, temperature first. Gas is converted only
// when withGas is set.
func Compensate(r Raw, c *Calibration, withGas bool) Measurement {
	t, fine := CompensateTemperature(r.Temperature, c)
	m := Measurement{
		Temperature: t,
		Pressure:    CompensatePressure(r.Pressure, c, fine),
		Humidity:    CompensateHumidity(r.Humidity, c, fine),
	}
	if withGas {
		m.GasResistance = CompensateGas(r.Gas, r.GasRange, c)
		m.GasValid = r.GasValid
		m.HeatStable = r.HeatStable
	}
	return m
}

// CompensateTemperature returns °C and the fine temperature.
func CompensateTemperature(adc uint32, c *Calibration) (float64, Fine) {
	a := float64(adc)
	var1 := ((a / 16384.0) - (float64(c.T1) / 1024.0)) * float64(c.T2)
	var2 := (((a / 131072.0) - (float64(c.T1) / 8192.0)) *
		((a / 131072.0) - (float64(c.T1) / 8192.0))) * (float64(c.T3) * 16.0)
	fine := var1 + var2
	return fine / 5120.0, Fine(fine)
}

// CompensatePressure returns Pa. A zero denominator yields 0.
func CompensatePressure(adc uint32, c *Calibration, fine Fine) float64 {
	var1 := float64(fine)/2.0 - 64000.0
	var2 := var1 * var1 * (float64(c.P6) / 131072.0)
	var2 = var2 + var1*float64(c.P5)*2.0
	var2 = var2/4.0 + float64(c.P4)*65536.0
	var1 = ((float64(c.P3)*var1*var1)/16384.0 + float64(c.P2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.P1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adc)
	p = ((p - var2/4096.0) * 6250.0) / var1
	var1 = (float64(c.P9) * p * p) / 2147483648.0
	var2 = p * (float64(c.P8) / 32768.0)
	var3 := (p / 256.0) * (p / 256.0) * (p / 256.0) * (float64(c.P10) / 131072.0)
	return p + (var1+var2+var3+float64(c.P7)*128.0)/16.0
}

// CompensateHumidity returns %RH clamped to [0, 100].
func CompensateHumidity(adc uint16, c *Calibration, fine Fine) float64 {
	tc := float64(fine) / 5120.0
	var1 := float64(adc) - ((float64(c.H1) * 16.0) + ((float64(c.H3) / 2.0) * tc))
	var2 := var1 * ((float64(c.H2) / 262144.0) *
		(1.0 + (float64(c.H4)/16384.0)*tc + (float64(c.H5)/1048576.0)*tc*tc))
	var3 := float64(c.H6) / 16384.0
	var4 := float64(c.H7) / 2097152.0
	h := var2 + (var3+var4*tc)*var2*var2
	return mathx.Clamp(h, 0, 100)
}

// Gas range lookup tables.
var (
	gasConst1 = [16]float64{
		1, 1, 1, 1, 1, 0.99, 1, 0.992, 1, 1, 0.998, 0.995, 1, 0.99, 1, 1,
	}
	gasConst2 = [16]float64{
		8000000, 4000000, 2000000, 1000000, 499500.4995, 248262.1648,
		125000, 63004.03226, 31281.28128, 15625, 7812.5, 3906.25,
		1953.125, 976.5625, 488.28125, 244.140625,
	}
)

// CompensateGas returns the sensor plate resistance in Ohm. A zero
// denominator yields 0.
func CompensateGas(adc uint16, gasRange uint8, c *Calibration) float64 {
	r := gasRange & gasRangeMask
	var1 := (1340.0 + 5.0*float64(c.RangeSwErr)) * gasConst1[r]
	den := float64(adc) - 512.0 + var1
	if den == 0 {
		return 0
	}
	return var1 * gasConst2[r] / den
}

// HeaterResistance encodes a heater target (°C, clamped to 400) for
// res_heat_x, given the ambient temperature. The range factor uses real
// division.
func HeaterResistance(targetC uint16, ambientC int8, c *Calibration) byte {
	target := float64(mathx.Clamp(targetC, 0, MaxHeaterTemp))
	var1 := float64(c.GH1)/16.0 + 49.0
	var2 := (float64(c.GH2)/32768.0)*0.0005 + 0.00235
	var3 := float64(c.GH3) / 1024.0
	var4 := var1 * (1.0 + var2*target)
	var5 := var4 + var3*float64(ambientC)
	res := 3.4 * ((var5 * (4.0 / (4.0 + float64(c.ResHeatRange))) *
		(1.0 / (1.0 + float64(c.ResHeatVal)*0.002))) - 25)
	return mathx.SaturateU8(res)
}

// HeatDuration encodes a heating time in ms for gas_wait_x: a 6-bit value
// and a 2-bit multiplier of 4^n. 252 ms and above saturate to 0xFF.
func HeatDuration(ms uint16) byte {
	if ms >= 0xFC {
		return 0xFF
	}
	var factor byte
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms) + factor*64
}

// Altitude derives metres from the measured pressure.
func (m Measurement) Altitude(seaLevelHPa float64) (float64, error) {
	return atmos.Altitude(m.Pressure, seaLevelHPa)
}
