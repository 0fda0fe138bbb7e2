package registers

import "strings"

// ReadingMap maps field names to decoded sensor values (numeric or string).
// Keys are unique within one decode call; maps from consecutive sections are
// merged left-to-right into one combined snapshot per device.
type ReadingMap map[string]interface{}

// Merge copies every entry of other into m. Later entries overwrite earlier
// homonymous fields, which some device families rely on: an authoritative
// reading placed late in the schedule wins.
func (m ReadingMap) Merge(other ReadingMap) {
	for k, v := range other {
		m[k] = v
	}
}

// Field describes one fixed-width big-endian integer inside a section
// payload. Value = raw / Scale after optional two's-complement sign
// interpretation.
type Field struct {
	Name   string
	Offset int     // byte offset within the payload
	Width  int     // 1, 2 or 4 bytes
	Signed bool    // interpret as two's complement before scaling
	Scale  float64 // decimal divisor, e.g. 10 for deci-volts; 0 means 1
}

// DecodeFields extracts every field that lies fully inside the payload.
// Fields truncated by a short payload are skipped, never failed: a single
// malformed section must not cost the caller the fields that did arrive.
func DecodeFields(payload []byte, fields []Field) ReadingMap {
	readings := make(ReadingMap, len(fields))

	for _, f := range fields {
		if f.Offset < 0 || f.Offset+f.Width > len(payload) {
			continue
		}

		var raw uint32
		for i := 0; i < f.Width; i++ {
			raw = raw<<8 | uint32(payload[f.Offset+i])
		}

		var value float64
		if f.Signed {
			value = float64(signExtend(raw, f.Width))
		} else {
			value = float64(raw)
		}

		scale := f.Scale
		if scale == 0 {
			scale = 1
		}
		readings[f.Name] = value / scale
	}

	return readings
}

// signExtend interprets the low width*8 bits of raw as two's complement
func signExtend(raw uint32, width int) int32 {
	shift := 32 - uint(width)*8
	return int32(raw<<shift) >> shift
}

// DecodeString extracts an ASCII string field, truncated at the first NUL
// byte and trimmed of trailing whitespace. Returns "" when the payload is
// too short for the field.
func DecodeString(payload []byte, offset, length int) string {
	if offset < 0 || offset+length > len(payload) {
		return ""
	}
	raw := payload[offset : offset+length]
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(string(raw), " \t\r\n")
}
