package bridge

import (
	"fmt"

	"github.com/juju/errors"
)

// ErrTimeout is returned when the firmware stops answering
var ErrTimeout = errors.New("timeout waiting for bridge response")

// ErrOddLength is returned by Program for data the firmware cannot
// program completely. Flash takes bytes in pairs and the firmware drops
// an odd trailing byte.
var ErrOddLength = errors.New("program data must have an even length")

// AckError indicates a write or program acknowledgement that did not
// match the length sent.
type AckError struct {
	Command  byte
	Expected byte
	Actual   byte
}

func (e *AckError) Error() string {
	return fmt.Sprintf("command %q: expected ack 0x%02X, got 0x%02X",
		e.Command, e.Expected, e.Actual)
}

// VerifyError indicates flash contents that differ from the image.
type VerifyError struct {
	// Offset is the first differing byte
	Offset      int
	ExpectedCRC uint16
	ActualCRC   uint16
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("flash verification failed at offset 0x%06X: image crc 0x%04X, flash crc 0x%04X",
		e.Offset, e.ExpectedCRC, e.ActualCRC)
}

// LengthError indicates a request that does not fit a single command.
type LengthError struct {
	Length int
	Max    int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("length %d out of range 1..%d", e.Length, e.Max)
}
