package protocol

// Checksum computes the 16-bit LWNX checksum of data.
//
// Devices document this as CRC-16-CCITT 0x1021, but the byte-wise shuffle below is
// what the firmware actually runs, seeded with zero. It must stay bit-exact.
// The result equals CRC-16/XMODEM (poly 0x1021, init 0, no reflection, no xorout).
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		code := crc>>8 ^ uint16(b)
		code ^= code >> 4
		crc = crc<<8 ^ code
		code <<= 5
		crc ^= code
		code <<= 7
		crc ^= code
	}
	return crc
}
