package bme680

import "iothat-go/drivers/devio"

// Calibration holds the factory trimming parameters, including the gas
// heater constants. Read once at init.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int8

	P1  uint16
	P2  int16
	P3  int8
	P4  int16
	P5  int16
	P6  int8
	P7  int8
	P8  int16
	P9  int16
	P10 uint8

	H1 uint16
	H2 uint16
	H3 int8
	H4 int8
	H5 int8
	H6 uint8
	H7 int8

	GH1 int8
	GH2 int16
	GH3 int8

	ResHeatVal   int8
	ResHeatRange uint8
	RangeSwErr   int8
}

func fetchCalibration(d *devio.Dev) (Calibration, error) {
	var a [calibALen]byte
	var b [calibBLen]byte
	var x [1]byte
	if err := d.ReadReg(regCalibA, a[:]); err != nil {
		return Calibration{}, err
	}
	if err := d.ReadReg(regCalibB, b[:]); err != nil {
		return Calibration{}, err
	}
	c := parseCalibration(a, b)
	if err := d.ReadReg(regResHeatVal, x[:]); err != nil {
		return Calibration{}, err
	}
	c.ResHeatVal = int8(x[0])
	if err := d.ReadReg(regResHeatRange, x[:]); err != nil {
		return Calibration{}, err
	}
	c.ResHeatRange = (x[0] & 0x30) >> 4
	if err := d.ReadReg(regRangeSwErr, x[:]); err != nil {
		return Calibration{}, err
	}
	c.RangeSwErr = int8(x[0]&0xF0) / 16
	return c, nil
}

// parseCalibration decodes the 0x8A..0xA0 and 0xE1..0xEE blocks. H1 and H2
// share 0xE2: H1 takes its low nibble, H2 its high nibble.
func parseCalibration(a [calibALen]byte, b [calibBLen]byte) Calibration {
	return Calibration{
		T1: devio.U16LE(b[8:]),
		T2: devio.S16LE(a[0:]),
		T3: int8(a[2]),

		P1:  devio.U16LE(a[4:]),
		P2:  devio.S16LE(a[6:]),
		P3:  int8(a[8]),
		P4:  devio.S16LE(a[10:]),
		P5:  devio.S16LE(a[12:]),
		P7:  int8(a[14]),
		P6:  int8(a[15]),
		P8:  devio.S16LE(a[18:]),
		P9:  devio.S16LE(a[20:]),
		P10: a[22],

		H1: uint16(b[2])<<4 | uint16(b[1]&0x0F),
		H2: uint16(b[0])<<4 | uint16(b[1]>>4),
		H3: int8(b[3]),
		H4: int8(b[4]),
		H5: int8(b[5]),
		H6: b[6],
		H7: int8(b[7]),

		GH2: devio.S16LE(b[10:]),
		GH1: int8(b[12]),
		GH3: int8(b[13]),
	}
}
