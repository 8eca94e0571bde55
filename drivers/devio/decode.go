package devio

// U16LE decodes b[0] as low byte and b[1] as high byte.
func U16LE(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

// S16LE is U16LE reinterpreted as two's complement.
func S16LE(b []byte) int16 { return int16(U16LE(b)) }

// U16BE decodes b[0] as high byte and b[1] as low byte.
func U16BE(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

// U20 assembles the 20-bit ADC layout msb<<12 | lsb<<4 | xlsb>>4 used by
// the Bosch environmental sensors.
func U20(msb, lsb, xlsb byte) uint32 {
	return uint32(msb)<<12 | uint32(lsb)<<4 | uint32(xlsb)>>4
}
