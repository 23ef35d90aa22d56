package nand

// ONFI CRC-16 parameters.
//
// [ONFI-4.0|5.7.1.1: Integrity CRC]
const (
	onfiCRCPolynomial = 0x8005
	onfiCRCSeed       = 0x4F4E
	crcHighBit        = 0x8000
)

// onfiCRC16 computes the parameter page CRC: MSB first, no reflection, no
// final XOR.
func onfiCRC16(data []byte) uint16 {
	crc := uint16(onfiCRCSeed)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&crcHighBit != 0 {
				crc = crc<<1 ^ onfiCRCPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
