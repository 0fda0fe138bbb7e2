package protocol

import (
	"encoding/binary"
	"fmt"

	"ble-solar-monitor/pkg/crc"
	"ble-solar-monitor/pkg/errors"
)

// Wire format constants for the BLE register protocol.
// Commands and responses follow Modbus read-holding-registers framing:
//
//	Command:  [device_id][0x03][start_hi][start_lo][count_hi][count_lo][crc_lo][crc_hi]
//	Response: [device_id][0x03][byte_count][payload...][crc][crc]
const (
	// BroadcastID addresses any device on the link
	BroadcastID = 0xFF
	// FuncReadRegisters is the only function code the devices answer
	FuncReadRegisters = 0x03

	headerLen = 3
	crcLen    = 2

	// FrameOverhead is the number of non-payload bytes in a response frame
	FrameOverhead = headerLen + crcLen
)

// BuildReadCommand builds the 8-byte broadcast read command for a register
// range. Register fields are big-endian; the CRC trailer is little-endian.
func BuildReadCommand(startRegister uint16, count uint16) []byte {
	command := make([]byte, 6)
	command[0] = BroadcastID
	command[1] = FuncReadRegisters
	binary.BigEndian.PutUint16(command[2:4], startRegister)
	binary.BigEndian.PutUint16(command[4:6], count)

	return crc.AppendCRC(command)
}

// ParseReadCommand recovers the register range from a read command.
// Returns false if the buffer is not a CRC-valid 8-byte read command.
func ParseReadCommand(buf []byte) (startRegister uint16, count uint16, ok bool) {
	if len(buf) != 8 || buf[1] != FuncReadRegisters || !crc.VerifyCRC(buf) {
		return 0, 0, false
	}
	return binary.BigEndian.Uint16(buf[2:4]), binary.BigEndian.Uint16(buf[4:6]), true
}

// ValidateHeader checks the leading device-id/function-code pair and returns
// the declared payload length from the third byte.
func ValidateHeader(buf []byte, deviceID byte) (int, error) {
	if len(buf) < headerLen {
		return 0, errors.NewProtocolError(errors.Incomplete, "validate header",
			fmt.Errorf("frame too short: %d bytes", len(buf)))
	}
	if buf[0] != deviceID || buf[1] != FuncReadRegisters {
		return 0, errors.NewProtocolError(errors.BadHeader, "validate header",
			fmt.Errorf("got %02X %02X, want %02X %02X", buf[0], buf[1], deviceID, FuncReadRegisters))
	}
	return int(buf[2]), nil
}

// DecodePayload slices the payload out of a response frame. The buffer must
// hold the full frame including the CRC trailer.
func DecodePayload(buf []byte) ([]byte, error) {
	if len(buf) < headerLen {
		return nil, errors.NewProtocolError(errors.Incomplete, "decode payload",
			fmt.Errorf("frame too short: %d bytes", len(buf)))
	}
	declared := int(buf[2])
	if len(buf) < headerLen+declared+crcLen {
		return nil, errors.NewProtocolError(errors.Incomplete, "decode payload",
			fmt.Errorf("declared %d payload bytes, frame holds %d", declared, len(buf)-FrameOverhead))
	}
	return buf[headerLen : headerLen+declared], nil
}

// ParseResponse validates a complete response frame (header, length, CRC)
// and returns its payload. The frame is never decoded past a failing check.
func ParseResponse(buf []byte, deviceID byte) ([]byte, error) {
	declared, err := ValidateHeader(buf, deviceID)
	if err != nil {
		return nil, err
	}
	if len(buf) < headerLen+declared+crcLen {
		return nil, errors.NewProtocolError(errors.Incomplete, "parse response",
			fmt.Errorf("declared %d payload bytes, frame holds %d", declared, len(buf)-FrameOverhead))
	}
	frame := buf[:headerLen+declared+crcLen]
	if !crc.VerifyCRC(frame) {
		return nil, errors.NewProtocolError(errors.CrcMismatch, "parse response",
			fmt.Errorf("checksum failed over %d bytes", len(frame)))
	}
	return frame[headerLen : headerLen+declared], nil
}

// TotalLength returns the full frame length implied by a declared payload length
func TotalLength(declared byte) int {
	return int(declared) + FrameOverhead
}
