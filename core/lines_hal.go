package core

import "errors"

// Line identifies one logical signal of the parallel port.
// Board code maps each Line to a physical pin.
type Line uint8

// Parallel port lines. Names follow the active-low convention of the
// IEEE-1284 EPP signals they carry.
const (
	LineD0 Line = iota
	LineD1
	LineD2
	LineD3
	LineD4
	LineD5
	LineD6
	LineD7
	LineWait       // WAIT#: peripheral ready, low lets a cycle begin
	LineWrite      // WRITE#: low for host write cycles
	LineDataStrobe // DATASTB#: low during a data cycle
	LineReset      // RESET#: low requests peripheral reset
	LineAddrStrobe // ADDRSTB#: low during an address cycle
	LineCount
)

// DataLines lists the eight data lines, bit 0 first.
var DataLines = [8]Line{LineD0, LineD1, LineD2, LineD3, LineD4, LineD5, LineD6, LineD7}

var lineNames = [LineCount]string{
	"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7",
	"wait_n", "write_n", "data_n", "reset_n", "addr_n",
}

// String returns the schematic name of the line
func (l Line) String() string {
	if l < LineCount {
		return lineNames[l]
	}
	return "line" + Utoa(uint32(l))
}

// ErrLineUnbound is returned by drivers for lines without a pin mapping
var ErrLineUnbound = errors.New("line not bound to a pin")

// LineDriver is the abstract signal line interface that the bridge uses.
// Platform-specific implementations handle actual hardware control.
type LineDriver interface {
	// SetDirection switches a line between input (high impedance) and output
	SetDirection(line Line, output bool) error

	// SetLine sets the output latch of a line. On an input line a high latch
	// enables the pull-up, matching AVR and RP2040 semantics.
	SetLine(line Line, high bool) error

	// GetLine reads the current logic level of a line
	GetLine(line Line) (bool, error)

	// DelayMicroseconds busy-waits for at least us microseconds
	DelayMicroseconds(us uint32)
}

// Global singleton used by firmware code.
var lineDriver LineDriver

// SetLineDriver is called by target-specific code to register its driver.
func SetLineDriver(d LineDriver) {
	lineDriver = d
}

// MustLines returns the configured driver or panics if missing.
func MustLines() LineDriver {
	if lineDriver == nil {
		panic("line driver not configured")
	}
	return lineDriver
}
