package bme680

// I2C addresses. The HAT straps SDO low.
const (
	Address    = 0x76
	AddressAlt = 0x77
)

// ChipID is the content of regID.
const ChipID = 0x61

const (
	regResHeatVal   = 0x00
	regResHeatRange = 0x02
	regRangeSwErr   = 0x04

	regMeasStatus0 = 0x1D
	regData        = 0x1F // press[3] temp[3] hum[2] reserved[3] gas[2]

	regIDACHeat0 = 0x50
	regResHeat0  = 0x5A
	regGasWait0  = 0x64
	regCtrlGas0  = 0x70
	regCtrlGas1  = 0x71
	regCtrlHum   = 0x72
	regCtrlMeas  = 0x74
	regConfig    = 0x75

	regCalibA = 0x8A // 0x8A..0xA0
	regID     = 0xD0
	regReset  = 0xE0
	regCalibB = 0xE1 // 0xE1..0xEE
)

const (
	calibALen = 23
	calibBLen = 14
	dataLen   = 13

	statusNewData      = 0x80
	statusGasMeasuring = 0x40
	statusMeasuring    = 0x20

	gasValid     = 0x20
	heatStable   = 0x10
	gasRangeMask = 0x0F

	ctrlGas0HeatOff = 0x08
	ctrlGas1RunGas  = 0x10

	modeForced = 0x01

	resetCmd = 0xB6
)
