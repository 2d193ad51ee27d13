// Parallel port line handling
// See http://efplus.com/techref/io/parallel/1284/eppmode.htm
package parallel

import "ecbridge/core"

// controlLines are every non-data line of the port
var controlLines = [...]core.Line{
	core.LineWait,
	core.LineWrite,
	core.LineDataStrobe,
	core.LineReset,
	core.LineAddrStrobe,
}

// Port is the set of parallel lines bound to one LineDriver.
// Data line direction is only ever changed for all eight bits at once.
type Port struct {
	lines core.LineDriver
}

// NewPort binds a port to its line driver
func NewPort(lines core.LineDriver) *Port {
	return &Port{lines: lines}
}

// Hiz sets every line to a high-impedance input with the pull-up off
func (p *Port) Hiz() error {
	for _, line := range core.DataLines {
		if err := p.float(line); err != nil {
			return err
		}
	}
	for _, line := range controlLines {
		if err := p.float(line); err != nil {
			return err
		}
	}
	return nil
}

func (p *Port) float(line core.Line) error {
	if err := p.lines.SetDirection(line, false); err != nil {
		return err
	}
	return p.lines.SetLine(line, false)
}

// dataDirection switches all data lines to outputs (forward) or inputs (reverse)
func (p *Port) dataDirection(output bool) error {
	for _, line := range core.DataLines {
		if err := p.lines.SetDirection(line, output); err != nil {
			return err
		}
	}
	return nil
}

// setDataLatches sets every data latch to level
func (p *Port) setDataLatches(high bool) error {
	for _, line := range core.DataLines {
		if err := p.lines.SetLine(line, high); err != nil {
			return err
		}
	}
	return nil
}

// writeData drives a byte onto the data lines.
// By convention all lines are high, so only the zero bits are pulled low.
func (p *Port) writeData(b byte) error {
	for bit, line := range core.DataLines {
		if b&(1<<uint(bit)) == 0 {
			if err := p.lines.SetLine(line, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// setDataHigh undoes writeData, returning the zero bits of b to high
func (p *Port) setDataHigh(b byte) error {
	for bit, line := range core.DataLines {
		if b&(1<<uint(bit)) == 0 {
			if err := p.lines.SetLine(line, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// readData samples D0..D7
func (p *Port) readData() (byte, error) {
	var b byte
	for bit, line := range core.DataLines {
		high, err := p.lines.GetLine(line)
		if err != nil {
			return 0, err
		}
		if high {
			b |= 1 << uint(bit)
		}
	}
	return b, nil
}

// set is a shorthand for SetLine
func (p *Port) set(line core.Line, high bool) error {
	return p.lines.SetLine(line, high)
}

// get is a shorthand for GetLine
func (p *Port) get(line core.Line) (bool, error) {
	return p.lines.GetLine(line)
}

// configure sets the latch of a line and then its direction
func (p *Port) configure(line core.Line, latch, output bool) error {
	if err := p.lines.SetLine(line, latch); err != nil {
		return err
	}
	return p.lines.SetDirection(line, output)
}

// driveData sets every data latch to its bit of b and turns the lines
// into outputs
func (p *Port) driveData(b byte) error {
	for bit, line := range core.DataLines {
		if err := p.lines.SetLine(line, b&(1<<uint(bit)) != 0); err != nil {
			return err
		}
	}
	return p.dataDirection(true)
}

// releaseData returns the data lines to floating inputs
func (p *Port) releaseData() error {
	if err := p.dataDirection(false); err != nil {
		return err
	}
	return p.setDataLatches(false)
}
