package sim

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"ecbridge/core"
	"ecbridge/parallel"
)

// Cycle is one completed peripheral cycle as seen by the Device
type Cycle struct {
	Kind parallel.CycleKind
	Data byte
}

// Device is a simulated embedded controller on the peripheral end of a
// bus. Address cycles select a register. The index and data registers
// forward to an attached Flash following the pass-through protocol; every
// other address is RAM that auto-increments on data cycles.
type Device struct {
	engine *parallel.Engine
	flash  *Flash

	mu     sync.Mutex
	addr   byte
	regs   [256]byte
	cycles []Cycle
}

// NewDevice creates a device answering on lines. flash may be nil.
func NewDevice(lines core.LineDriver, flash *Flash) *Device {
	return &Device{
		engine: parallel.NewEngine(lines),
		flash:  flash,
	}
}

// Run answers host cycles until ctx is canceled
func (d *Device) Run(ctx context.Context) error {
	return Serve(ctx, d.engine, d.handle)
}

// Serve resets engine as a peripheral and answers cycles with handler
// until ctx is canceled. It returns nil on cancellation.
func Serve(ctx context.Context, engine *parallel.Engine, handler parallel.CycleHandler) error {
	parallel.WithPoller(core.Poller{Idle: runtime.Gosched, Done: ctx.Done()})(engine)
	if err := engine.Reset(parallel.Peripheral); err != nil {
		return err
	}
	defer engine.Hiz()

	for {
		if _, _, err := engine.ServeCycle(handler); err != nil {
			if errors.Is(err, core.ErrCanceled) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (d *Device) handle(kind parallel.CycleKind, data *byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch kind {
	case parallel.AddressWrite:
		d.addr = *data
	case parallel.AddressRead:
		*data = d.addr
	case parallel.DataWrite:
		d.write(*data)
	case parallel.DataRead:
		*data = d.read()
	}
	d.cycles = append(d.cycles, Cycle{Kind: kind, Data: *data})
}

func (d *Device) write(b byte) {
	switch d.addr {
	case parallel.AddrIndex:
		d.regs[d.addr] = b
	case parallel.AddrData:
		d.regs[d.addr] = b
		if d.flash == nil {
			return
		}
		switch d.regs[parallel.AddrIndex] {
		case parallel.ChipDisable:
			d.flash.Deselect()
		case parallel.ChipEnable:
			d.flash.Select()
			d.flash.WriteByte(b)
		}
	default:
		d.regs[d.addr] = b
		d.addr++
	}
}

func (d *Device) read() byte {
	switch d.addr {
	case parallel.AddrIndex:
		return d.regs[d.addr]
	case parallel.AddrData:
		if d.flash != nil && d.regs[parallel.AddrIndex] == parallel.ChipEnable {
			d.flash.Select()
			b, _ := d.flash.ReadByte()
			return b
		}
		return d.regs[d.addr]
	}
	b := d.regs[d.addr]
	d.addr++
	return b
}

// Cycles returns every cycle served so far
func (d *Device) Cycles() []Cycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Cycle(nil), d.cycles...)
}

// ClearCycles empties the cycle log
func (d *Device) ClearCycles() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cycles = nil
}

// Register returns the value stored at addr
func (d *Device) Register(addr byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[addr]
}

// SetRegister stores v at addr
func (d *Device) SetRegister(addr, v byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs[addr] = v
}
