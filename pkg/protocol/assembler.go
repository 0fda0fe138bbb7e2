package protocol

import "fmt"

// AssemblerState tracks the lifecycle of one response frame
type AssemblerState int

const (
	// StateEmpty - no bytes received since the last reset
	StateEmpty AssemblerState = iota
	// StateAccumulating - some bytes received, frame not yet complete
	StateAccumulating
	// StateComplete - the full declared frame length has arrived (terminal)
	StateComplete
	// StateTimedOut - the per-section wait expired before completion (terminal)
	StateTimedOut
)

// String returns the string representation of the state
func (s AssemblerState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateComplete:
		return "COMPLETE"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Assembler reassembles one logical response frame from the link-layer
// notification chunks the device delivers. The devices fragment frames at
// the BLE MTU, so a single response usually arrives as several chunks.
//
// Not safe for concurrent use; the connection manager feeds it from a single
// goroutine.
type Assembler struct {
	buf   []byte
	state AssemblerState
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends a chunk and reports whether the frame is now complete. Once
// the buffer holds the 3-byte header, the declared total length is re-derived
// after every append; the frame completes when the buffer reaches it.
// Chunks fed after completion or timeout are dropped.
func (a *Assembler) Feed(chunk []byte) bool {
	if a.state == StateComplete || a.state == StateTimedOut {
		return a.state == StateComplete
	}

	a.buf = append(a.buf, chunk...)
	if len(a.buf) > 0 {
		a.state = StateAccumulating
	}

	if len(a.buf) >= headerLen && len(a.buf) >= TotalLength(a.buf[2]) {
		a.state = StateComplete
	}

	return a.state == StateComplete
}

// State returns the current assembler state
func (a *Assembler) State() AssemblerState {
	return a.state
}

// Frame returns a copy of the assembled frame, trimmed to its declared
// length. Returns nil unless the frame is complete: a partial buffer is
// never surfaced as a valid frame.
func (a *Assembler) Frame() []byte {
	if a.state != StateComplete {
		return nil
	}
	frame := make([]byte, TotalLength(a.buf[2]))
	copy(frame, a.buf)
	return frame
}

// Reset clears the buffer and returns to the empty state. Must be called
// before every new command so a stale partial buffer from the previous
// operation cannot leak into the next response.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.state = StateEmpty
}

// MarkTimedOut moves the assembler to the terminal timed-out state. The
// accumulated bytes are kept for diagnostics but Frame() stays nil.
func (a *Assembler) MarkTimedOut() {
	if a.state != StateComplete {
		a.state = StateTimedOut
	}
}

// Received returns how many bytes have accumulated so far
func (a *Assembler) Received() int {
	return len(a.buf)
}

// AckMessage builds the acknowledgement the device expects after a completed
// frame, embedding the frame's leading byte. Without this write many device
// families stop notifying for the rest of the connection.
func AckMessage(leading byte) []byte {
	return []byte(fmt.Sprintf("main recv data[%02x] [", leading))
}
