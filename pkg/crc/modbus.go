package crc

// CalculateCRC16 calculates the Modbus CRC-16 checksum for the given data
// This implements the standard Modbus RTU CRC-16 algorithm
// (polynomial 0xA001, initial value 0xFFFF, LSB-first)
func CalculateCRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)

	for _, b := range data {
		crc ^= uint16(b)

		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc >>= 1
				crc ^= 0xA001
			} else {
				crc >>= 1
			}
		}
	}

	return crc
}

// AppendCRC appends the CRC-16 checksum to the data.
// The CRC is appended low byte first, high byte second. The device rejects
// commands with the bytes in the opposite order, so this ordering is part of
// the wire contract.
func AppendCRC(data []byte) []byte {
	crc := CalculateCRC16(data)

	result := make([]byte, len(data)+2)
	copy(result, data)
	result[len(data)] = byte(crc & 0xFF)          // Low byte
	result[len(data)+1] = byte((crc >> 8) & 0xFF) // High byte

	return result
}

// VerifyCRC verifies that the trailing CRC in the data is correct
// Returns true if the CRC is valid, false otherwise
func VerifyCRC(data []byte) bool {
	if len(data) < 2 {
		return false
	}

	message := data[:len(data)-2]
	receivedCRC := uint16(data[len(data)-2]) | (uint16(data[len(data)-1]) << 8)

	return receivedCRC == CalculateCRC16(message)
}
