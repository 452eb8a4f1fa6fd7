package protocol

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPayloadTooLarge = errors.New("lwnx: payload too large")
	ErrShortFrame      = errors.New("lwnx: short frame")
	ErrBadMarker       = errors.New("lwnx: invalid start marker")
	ErrBadLength       = errors.New("lwnx: bad declared length")
	ErrBadCRC          = errors.New("lwnx: bad crc")
	ErrNoFrame         = errors.New("lwnx: no frame before deadline")
	ErrRequestTimeout  = errors.New("lwnx: request timed out")
	ErrOutOfRange      = errors.New("lwnx: field out of range")
	ErrClosed          = errors.New("lwnx: session closed")
)

// RequestTimeoutError is returned once every attempt of a request went unanswered.
// Attempts is also the number of times the request was written to the device,
// which matters for write commands that are not idempotent.
type RequestTimeoutError struct {
	Command  byte
	Write    bool
	Attempts int
	Elapsed  time.Duration
}

func (e *RequestTimeoutError) Error() string {
	dir := "read"
	if e.Write {
		dir = "write"
	}
	return fmt.Sprintf("lwnx: no response to %s command %d after %d attempts (%v)",
		dir, e.Command, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *RequestTimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// TransportError wraps an I/O failure of the underlying byte channel.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("lwnx: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// OutOfRangeError reports a field window that does not fit inside a packet payload.
type OutOfRangeError struct {
	Offset    int
	Size      int
	Available int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("lwnx: field [%d:%d] outside payload of %d bytes",
		e.Offset, e.Offset+e.Size, e.Available)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// IsTransportError returns true if err is, or wraps, a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
