// Package sim provides an in-memory parallel bus, a simulated embedded
// controller peripheral and an SPI NOR flash for testing the bridge
// without hardware.
package sim

import (
	"runtime"
	"sync"

	"ecbridge/core"
)

// Bus is a set of wires shared by two ends. Each end has its own
// direction and output latch per line, like two microcontrollers joined
// by a ribbon cable.
//
// A line driven by one end reads as that end's latch. An undriven line
// reads high if either end has its pull-up (input latch) enabled. When
// both ends drive a line the levels are wire-ANDed and a conflict is
// counted.
type Bus struct {
	mu       sync.Mutex
	ends     [2]endState
	conflict int

	// Delay is called for DelayMicroseconds on either end
	Delay func(us uint32)
}

type endState struct {
	output [core.LineCount]bool
	latch  [core.LineCount]bool
}

// End is one side of a Bus. It implements core.LineDriver.
type End struct {
	bus  *Bus
	side int
}

var _ core.LineDriver = (*End)(nil)

// NewBus creates a bus with every line floating
func NewBus() *Bus {
	return &Bus{Delay: func(uint32) { runtime.Gosched() }}
}

// HostEnd returns the end the bridge firmware drives
func (b *Bus) HostEnd() *End {
	return &End{bus: b, side: 0}
}

// DeviceEnd returns the end the simulated peripheral drives
func (b *Bus) DeviceEnd() *End {
	return &End{bus: b, side: 1}
}

// Level returns the resolved logic level of a line
func (b *Bus) Level(line core.Line) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level(line)
}

// Conflicts returns how many times both ends drove a line to different
// levels
func (b *Bus) Conflicts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conflict
}

func (b *Bus) level(line core.Line) bool {
	h, d := &b.ends[0], &b.ends[1]
	switch {
	case h.output[line] && d.output[line]:
		return h.latch[line] && d.latch[line]
	case h.output[line]:
		return h.latch[line]
	case d.output[line]:
		return d.latch[line]
	}
	return h.latch[line] || d.latch[line]
}

func (b *Bus) checkConflict(line core.Line) {
	h, d := &b.ends[0], &b.ends[1]
	if h.output[line] && d.output[line] && h.latch[line] != d.latch[line] {
		b.conflict++
	}
}

func checkLine(line core.Line) error {
	if line >= core.LineCount {
		return core.ErrLineUnbound
	}
	return nil
}

// SetDirection implements core.LineDriver
func (e *End) SetDirection(line core.Line, output bool) error {
	if err := checkLine(line); err != nil {
		return err
	}
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.bus.ends[e.side].output[line] = output
	e.bus.checkConflict(line)
	return nil
}

// SetLine implements core.LineDriver
func (e *End) SetLine(line core.Line, high bool) error {
	if err := checkLine(line); err != nil {
		return err
	}
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.bus.ends[e.side].latch[line] = high
	e.bus.checkConflict(line)
	return nil
}

// GetLine implements core.LineDriver
func (e *End) GetLine(line core.Line) (bool, error) {
	if err := checkLine(line); err != nil {
		return false, err
	}
	return e.bus.Level(line), nil
}

// DelayMicroseconds implements core.LineDriver
func (e *End) DelayMicroseconds(us uint32) {
	if e.bus.Delay != nil {
		e.bus.Delay(us)
	}
}

// Output reports whether this end drives line
func (e *End) Output(line core.Line) bool {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	return e.bus.ends[e.side].output[line]
}
