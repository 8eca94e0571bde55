package bme280

// I2C addresses. The HAT straps SDO high.
const (
	Address    = 0x77
	AddressAlt = 0x76
)

// ChipID is the content of regID.
const ChipID = 0x60

// Register map.
const (
	regCalib00  = 0x88 // T1..P9, 0xA0 reserved, H1 at 0xA1
	regID       = 0xD0
	regReset    = 0xE0
	regCalib26  = 0xE1 // H2..H6
	regCtrlHum  = 0xF2
	regStatus   = 0xF3
	regCtrlMeas = 0xF4
	regConfig   = 0xF5
	regData     = 0xF7 // press[3] temp[3] hum[2]
)

const (
	calib00Len = 26
	calib26Len = 7
	dataLen    = 8

	statusMeasuring = 0x08
	statusImUpdate  = 0x01

	resetCmd = 0xB6
)
