package veml6075

// Address is fixed.
const Address = 0x10

// DeviceID is the low byte of regID.
const DeviceID = 0x26

// Command codes. Every register is a 16-bit little-endian word.
const (
	regConf  = 0x00
	regUVA   = 0x07
	regDummy = 0x08
	regUVB   = 0x09
	regComp1 = 0x0A
	regComp2 = 0x0B
	regID    = 0x0C
)

// UV_CONF bits.
const (
	confSD      = 0x01
	confAF      = 0x02
	confTrig    = 0x04
	confHD      = 0x08
	confITShift = 4
	confITMask  = 0x70
)
