package bme280

import (
	"iothat-go/drivers/devio"
	"iothat-go/drivers/internal/atmos"
	"iothat-go/x/mathx"
)

// StandardSeaLevelHPa is the default altitude reference.
const StandardSeaLevelHPa = atmos.StandardSeaLevelHPa

// Fine is the t_fine carry produced by temperature compensation. Pressure
// and humidity take it as an argument so they can only be computed after
// the temperature of the same sample.
type Fine int32

// Raw is one burst of ADC counts.
type Raw struct {
	Pressure    uint32 // 20 bit
	Temperature uint32 // 20 bit
	Humidity    uint16
}

func parseRaw(b []byte) Raw {
	return Raw{
		Pressure:    devio.U20(b[0], b[1], b[2]),
		Temperature: devio.U20(b[3], b[4], b[5]),
		Humidity:    devio.U16BE(b[6:]),
	}
}

// Measurement in physical units.
type Measurement struct {
	Temperature float64 // °C
	Pressure    float64 // Pa
	Humidity    float64 // %RH
}

// Compensate converts one raw burst, temperature first.
func Compensate(r Raw, c *Calibration) Measurement {
	t, fine := CompensateTemperature(r.Temperature, c)
	return Measurement{
		Temperature: t,
		Pressure:    CompensatePressure(r.Pressure, c, fine),
		Humidity:    CompensateHumidity(r.Humidity, c, fine),
	}
}

// CompensateTemperature returns °C and the fine temperature.
// The evaluation order follows the datasheet floating-point reference.
func CompensateTemperature(adc uint32, c *Calibration) (float64, Fine) {
	a := float64(adc)
	var1 := (a/16384.0 - float64(c.T1)/1024.0) * float64(c.T2)
	var2 := ((a/131072.0 - float64(c.T1)/8192.0) * (a/131072.0 - float64(c.T1)/8192.0)) * float64(c.T3)
	return (var1 + var2) / 5120.0, Fine(int32(var1 + var2))
}

// CompensatePressure returns Pa. A zero denominator yields 0.
func CompensatePressure(adc uint32, c *Calibration, fine Fine) float64 {
	var1 := float64(fine)/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.P6) / 32768.0
	var2 = var2 + var1*float64(c.P5)*2.0
	var2 = var2/4.0 + float64(c.P4)*65536.0
	var1 = (float64(c.P3)*var1*var1/524288.0 + float64(c.P2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.P1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adc)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.P9) * p * p / 2147483648.0
	var2 = p * float64(c.P8) / 32768.0
	return p + (var1+var2+float64(c.P7))/16.0
}

// CompensateHumidity returns %RH clamped to [0, 100].
func CompensateHumidity(adc uint16, c *Calibration, fine Fine) float64 {
	h := float64(fine) - 76800.0
	h = (float64(adc) - (float64(c.H4)*64.0 + float64(c.H5)/16384.0*h)) *
		(float64(c.H2) / 65536.0 * (1.0 + float64(c.H6)/67108864.0*h*(1.0+float64(c.H3)/67108864.0*h)))
	h = h * (1.0 - float64(c.H1)*h/524288.0)
	return mathx.Clamp(h, 0, 100)
}

// Altitude derives metres from the measured pressure.
func (m Measurement) Altitude(seaLevelHPa float64) (float64, error) {
	return atmos.Altitude(m.Pressure, seaLevelHPa)
}
