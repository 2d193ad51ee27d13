package parallel

import "ecbridge/core"

// Settle time around reset edges
const resetSettleUS = 1

// Role selects which side of the handshake a port plays.
// Host and Peripheral are the only implementations.
type Role interface {
	// String returns the role name for debug output
	String() string

	// reset configures line directions for this role on a high-impedance port
	reset(p *Port) error

	isHost() bool
}

type hostRole struct{}

type peripheralRole struct{}

var (
	// Host owns reset, the strobes and WRITE#, and polls WAIT#
	Host Role = hostRole{}

	// Peripheral answers host cycles and drives WAIT#
	Peripheral Role = peripheralRole{}
)

func (hostRole) String() string       { return "host" }
func (peripheralRole) String() string { return "peripheral" }

func (hostRole) isHost() bool       { return true }
func (peripheralRole) isHost() bool { return false }

func (hostRole) reset(p *Port) error {
	// Drive RESET# low (latch is low after Hiz) to hold the peripheral in reset
	if err := p.lines.SetDirection(core.LineReset, true); err != nil {
		return err
	}

	p.lines.DelayMicroseconds(resetSettleUS)

	if err := configureControl(p, true); err != nil {
		return err
	}

	// Pull up data lines
	if err := p.setDataLatches(true); err != nil {
		return err
	}

	p.lines.DelayMicroseconds(resetSettleUS)

	// End reset
	return p.set(core.LineReset, true)
}

func (peripheralRole) reset(p *Port) error {
	// RESET# stays a floating input owned by the host
	p.lines.DelayMicroseconds(resetSettleUS)

	if err := configureControl(p, false); err != nil {
		return err
	}

	// Data lines float on the peripheral side
	if err := p.setDataLatches(false); err != nil {
		return err
	}

	p.lines.DelayMicroseconds(resetSettleUS)
	return nil
}

// configureControl sets up the strobes, WRITE# and WAIT#.
// The host drives the strobes and WRITE# idle-high and pulls up WAIT#;
// the peripheral pulls up the strobes and WRITE# and drives WAIT# low.
func configureControl(p *Port, host bool) error {
	for _, line := range [...]core.Line{core.LineDataStrobe, core.LineAddrStrobe, core.LineWrite} {
		if err := p.configure(line, true, host); err != nil {
			return err
		}
	}
	return p.configure(core.LineWait, host, !host)
}
