package protocol

// crc16Poly is the reflected CCITT polynomial
const crc16Poly = 0x8408

// CRC16 returns the CRC-16/MCRF4XX of data. The host uses it to compare
// a flash image with what reads back through the bridge.
func CRC16(data []byte) uint16 {
	return CRC16Update(0xFFFF, data)
}

// CRC16Update continues a checksum over more data
func CRC16Update(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ crc16Poly
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
