package errors

import (
	"errors"
	"fmt"
)

// ErrorSeverity defines the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MonitorError is the base error type for all monitor errors
type MonitorError struct {
	Op       string        // Operation that failed
	Err      error         // Underlying error
	Severity ErrorSeverity // Error severity
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Severity, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Severity, e.Op)
}

// Unwrap returns the underlying error
func (e *MonitorError) Unwrap() error {
	return e.Err
}

// ConnectErrorKind classifies connection failures for the retry policy
type ConnectErrorKind int

const (
	// ConnectNotFound - device absent from scan range, retrying is pointless
	ConnectNotFound ConnectErrorKind = iota
	// ConnectTimeout - link establishment exceeded its bound, retryable
	ConnectTimeout
	// ConnectTransport - lower-layer failure, retryable
	ConnectTransport
)

// String returns the string representation of the kind
func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectNotFound:
		return "NOT_FOUND"
	case ConnectTimeout:
		return "TIMEOUT"
	case ConnectTransport:
		return "TRANSPORT"
	default:
		return "UNKNOWN"
	}
}

// ConnectError represents a failure to establish the BLE link
type ConnectError struct {
	MonitorError
	Kind    ConnectErrorKind
	Address string // BLE address of the device
}

// NewConnectError creates a new connection error
func NewConnectError(kind ConnectErrorKind, op string, err error, address string) *ConnectError {
	return &ConnectError{
		MonitorError: MonitorError{
			Op:       op,
			Err:      err,
			Severity: SeverityError,
		},
		Kind:    kind,
		Address: address,
	}
}

// Error implements the error interface
func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] connect %s (%s): %s: %v",
			e.Severity, e.Address, e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] connect %s (%s): %s",
		e.Severity, e.Address, e.Kind, e.Op)
}

// ProtocolErrorKind classifies malformed frames
type ProtocolErrorKind int

const (
	// BadHeader - leading device-id/function-code pair does not match
	BadHeader ProtocolErrorKind = iota
	// Incomplete - declared length exceeds the bytes received
	Incomplete
	// CrcMismatch - trailing checksum fails validation
	CrcMismatch
)

// String returns the string representation of the kind
func (k ProtocolErrorKind) String() string {
	switch k {
	case BadHeader:
		return "BAD_HEADER"
	case Incomplete:
		return "INCOMPLETE"
	case CrcMismatch:
		return "CRC_MISMATCH"
	default:
		return "UNKNOWN"
	}
}

// ProtocolError represents a malformed or truncated device frame.
// Protocol errors are recovered locally: the affected section is skipped
// and the overall read continues.
type ProtocolError struct {
	MonitorError
	Kind ProtocolErrorKind
}

// NewProtocolError creates a new protocol error
func NewProtocolError(kind ProtocolErrorKind, op string, err error) *ProtocolError {
	return &ProtocolError{
		MonitorError: MonitorError{
			Op:       op,
			Err:      err,
			Severity: SeverityWarning,
		},
		Kind: kind,
	}
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] protocol (%s): %s: %v", e.Severity, e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] protocol (%s): %s", e.Severity, e.Kind, e.Op)
}

// ErrEmptySection reports a section that yielded zero decodable fields.
// Recorded but never escalated.
var ErrEmptySection = errors.New("section yielded no decodable fields")

// IsNotFound reports whether err is a definitive device-not-found failure
func IsNotFound(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == ConnectNotFound
}

// IsTimeout reports whether err is a connection timeout
func IsTimeout(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce) && ce.Kind == ConnectTimeout
}

// IsProtocol reports whether err is a recoverable protocol error
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
