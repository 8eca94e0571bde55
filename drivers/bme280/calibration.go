package bme280

import "iothat-go/drivers/devio"

// Calibration holds the factory trimming parameters. Read once at init.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8
}

// fetchCalibration reads both NVM blocks. On error the zero value is returned.
func fetchCalibration(d *devio.Dev) (Calibration, error) {
	var a [calib00Len]byte
	var b [calib26Len]byte
	if err := d.ReadReg(regCalib00, a[:]); err != nil {
		return Calibration{}, err
	}
	if err := d.ReadReg(regCalib26, b[:]); err != nil {
		return Calibration{}, err
	}
	return parseCalibration(a, b), nil
}

// parseCalibration decodes the 0x88..0xA1 and 0xE1..0xE7 blocks.
// H4 and H5 share 0xE5: H4 takes its low nibble, H5 its high nibble.
func parseCalibration(a [calib00Len]byte, b [calib26Len]byte) Calibration {
	return Calibration{
		T1: devio.U16LE(a[0:]),
		T2: devio.S16LE(a[2:]),
		T3: devio.S16LE(a[4:]),

		P1: devio.U16LE(a[6:]),
		P2: devio.S16LE(a[8:]),
		P3: devio.S16LE(a[10:]),
		P4: devio.S16LE(a[12:]),
		P5: devio.S16LE(a[14:]),
		P6: devio.S16LE(a[16:]),
		P7: devio.S16LE(a[18:]),
		P8: devio.S16LE(a[20:]),
		P9: devio.S16LE(a[22:]),

		H1: a[25],
		H2: devio.S16LE(b[0:]),
		H3: b[2],
		H4: int16(int8(b[3]))<<4 | int16(b[4]&0x0F),
		H5: int16(int8(b[5]))<<4 | int16(b[4]>>4),
		H6: int8(b[6]),
	}
}
