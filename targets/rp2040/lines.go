//go:build rp2040

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/delay"

	"ecbridge/core"
)

// Pin map of the bridge board. The data bus sits on eight consecutive
// GPIOs so a logic analyzer can capture it as one group.
var linePins = [core.LineCount]machine.Pin{
	core.LineD0:         machine.GPIO16,
	core.LineD1:         machine.GPIO17,
	core.LineD2:         machine.GPIO18,
	core.LineD3:         machine.GPIO19,
	core.LineD4:         machine.GPIO20,
	core.LineD5:         machine.GPIO21,
	core.LineD6:         machine.GPIO22,
	core.LineD7:         machine.GPIO26,
	core.LineWait:       machine.GPIO10,
	core.LineWrite:      machine.GPIO11,
	core.LineDataStrobe: machine.GPIO12,
	core.LineReset:      machine.GPIO13,
	core.LineAddrStrobe: machine.GPIO14,
}

// RPLineDriver implements core.LineDriver on RP2040 GPIO. The SIO block
// has no separate latch for input pins, so the latch is tracked here and
// applied as the pull-up when a line is an input.
type RPLineDriver struct {
	output [core.LineCount]bool
	latch  [core.LineCount]bool
}

// NewRPLineDriver floats every line with its pull-up enabled
func NewRPLineDriver() *RPLineDriver {
	d := &RPLineDriver{}
	for i := range linePins {
		d.latch[i] = true
		linePins[i].Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	return d
}

func (d *RPLineDriver) apply(line core.Line) {
	pin := linePins[line]
	switch {
	case d.output[line]:
		pin.Set(d.latch[line])
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Set(d.latch[line])
	case d.latch[line]:
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	default:
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

// SetDirection switches line between input and output
func (d *RPLineDriver) SetDirection(line core.Line, output bool) error {
	if line >= core.LineCount {
		return core.ErrLineUnbound
	}
	if d.output[line] == output {
		return nil
	}
	d.output[line] = output
	d.apply(line)
	return nil
}

// SetLine sets the latch of line
func (d *RPLineDriver) SetLine(line core.Line, high bool) error {
	if line >= core.LineCount {
		return core.ErrLineUnbound
	}
	d.latch[line] = high
	if d.output[line] {
		linePins[line].Set(high)
		return nil
	}
	d.apply(line)
	return nil
}

// GetLine reads the pin level
func (d *RPLineDriver) GetLine(line core.Line) (bool, error) {
	if line >= core.LineCount {
		return false, core.ErrLineUnbound
	}
	return linePins[line].Get(), nil
}

// DelayMicroseconds busy-waits
func (d *RPLineDriver) DelayMicroseconds(us uint32) {
	delay.Sleep(time.Duration(us) * time.Microsecond)
}
