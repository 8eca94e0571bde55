package apds9960

// Address is fixed.
const Address = 0x39

const (
	regEnable  = 0x80
	regATime   = 0x81
	regWTime   = 0x83
	regAILTL   = 0x84
	regAILTH   = 0x85
	regAIHTL   = 0x86
	regAIHTH   = 0x87
	regPILT    = 0x89
	regPIHT    = 0x8B
	regPers    = 0x8C
	regConfig1 = 0x8D
	regPPulse  = 0x8E
	regControl = 0x8F
	regConfig2 = 0x90
	regID      = 0x92
	regCDataL  = 0x94 // C, R, G, B little-endian words
	regPData   = 0x9C
	regPOffUR  = 0x9D
	regPOffDL  = 0x9E
	regConfig3 = 0x9F
	regGPEnTh  = 0xA0
	regGExTh   = 0xA1
	regGConf1  = 0xA2
	regGConf2  = 0xA3
	regGOffU   = 0xA4
	regGOffD   = 0xA5
	regGPulse  = 0xA6
	regGOffL   = 0xA7
	regGOffR   = 0xA9
	regGConf3  = 0xAA
	regGConf4  = 0xAB
)

// ENABLE bits.
const (
	enPON = 0x01
	enAEN = 0x02
	enPEN = 0x04
	enWEN = 0x08
	enGEN = 0x40
)

// Accepted ID register values.
var chipIDs = []byte{0xAB, 0xA8}

// initSequence brings the engine to a known state with power on and every
// function off. ALS: 200 ms integration, 4x gain. Proximity: 8 pulses of
// 8 us, 100 mA, 4x gain. Wait time 20 ms.
var initSequence = [...][2]byte{
	{regEnable, enPON},
	{regATime, 0xB6},
	{regWTime, 0xF9},
	{regAILTL, 0xFF},
	{regAILTH, 0xFF},
	{regAIHTL, 0x00},
	{regAIHTH, 0x00},
	{regPILT, 0},
	{regPIHT, 255},
	{regPers, 0x11},
	{regConfig1, 0x60},
	{regPPulse, 0x48},
	{regControl, 0x00 | 0x08 | 0x01},
	{regConfig2, 0x01},
	{regPOffUR, 0x00},
	{regPOffDL, 0x00},
	{regConfig3, 0x00},
	{regGPEnTh, 50},
	{regGExTh, 25},
	{regGConf1, 0x41},
	{regGConf2, 0x40 | 0x00 | 0x01},
	{regGOffU, 0x00},
	{regGOffD, 0x00},
	{regGOffL, 0x00},
	{regGOffR, 0x00},
	{regGPulse, 0x96},
	{regGConf3, 0x00},
	{regGConf4, 0x00},
}
