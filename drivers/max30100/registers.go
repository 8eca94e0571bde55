package max30100

// Address is fixed.
const Address = 0x57

// PartID is the content of regPartID.
const PartID = 0x11

const (
	regIntStatus = 0x00
	regIntEnable = 0x01
	regFIFOWr    = 0x02
	regFIFOOvf   = 0x03
	regFIFORd    = 0x04
	regFIFOData  = 0x05
	regMode      = 0x06
	regSpO2      = 0x07
	regLED       = 0x09
	regTempInt   = 0x16
	regTempFrac  = 0x17
	regPartID    = 0xFF
)

// MODE bits.
const (
	modeShutdown = 0x80
	modeReset    = 0x40
	modeTempEn   = 0x08
	modeMask     = 0x07
)

const (
	spo2HiRes      = 0x40
	spo2RateShift  = 2
	fifoDepth      = 16
	bytesPerSample = 4
)
