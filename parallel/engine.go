package parallel

import (
	"errors"

	"ecbridge/core"
)

// MaxTransaction is the largest number of cycles in one Transaction
const MaxTransaction = 128

// Handshake timing in microseconds
const (
	dataSettleUS    = 1    // data lines driven, before the strobe
	strobeSettleUS  = 1    // strobe asserted, before polling WAIT#
	strobeReleaseUS = 5    // strobe released, before the next cycle
	resetBackoffUS  = 1000 // peripheral back-off while the host holds reset
)

var (
	// ErrTransactionTooLong is returned for buffers larger than MaxTransaction
	ErrTransactionTooLong = errors.New("transaction longer than 128 cycles")

	// ErrWrongRole is returned when an operation does not match the engine role
	ErrWrongRole = errors.New("operation not valid for current role")
)

// CycleKind tags one cycle with its strobe and direction, from the host's
// point of view.
type CycleKind uint8

const (
	DataWrite CycleKind = iota
	DataRead
	AddressWrite
	AddressRead
)

func cycleKind(read, addr bool) CycleKind {
	k := DataWrite
	if read {
		k |= DataRead
	}
	if addr {
		k |= AddressWrite
	}
	return k
}

// Read reports whether the host reads during this cycle
func (k CycleKind) Read() bool {
	return k&DataRead != 0
}

// Address reports whether the cycle used the address strobe
func (k CycleKind) Address() bool {
	return k&AddressWrite != 0
}

func (k CycleKind) String() string {
	switch k {
	case DataWrite:
		return "data-write"
	case DataRead:
		return "data-read"
	case AddressWrite:
		return "address-write"
	case AddressRead:
		return "address-read"
	}
	return "cycle" + core.Utoa(uint32(k))
}

// traceEvent maps a cycle kind to its trace ring code
func (k CycleKind) traceEvent() uint8 {
	switch k {
	case AddressWrite:
		return core.EvtAddrWrite
	case AddressRead:
		return core.EvtAddrRead
	case DataRead:
		return core.EvtDataRead
	}
	return core.EvtDataWrite
}

// CycleHandler produces or consumes the byte of one peripheral cycle.
// For host reads it is called before the bus is driven and must store the
// reply in *data. For host writes *data holds the sampled byte.
type CycleHandler func(kind CycleKind, data *byte)

// Engine runs the parallel handshake on one Port.
// It is not safe for concurrent use: every Transaction must complete
// before another starts on the same port.
type Engine struct {
	port  *Port
	role  Role
	poll  core.Poller
	trace bool
}

// Option configures an Engine
type Option func(*Engine)

// WithPoller sets the poller used for every WAIT# and strobe wait
func WithPoller(p core.Poller) Option {
	return func(e *Engine) {
		e.poll = p
	}
}

// WithTrace records every completed cycle in the core trace ring
func WithTrace() Option {
	return func(e *Engine) {
		e.trace = true
	}
}

// NewEngine creates an engine over lines. Call Reset before any cycle.
func NewEngine(lines core.LineDriver, opts ...Option) *Engine {
	e := &Engine{port: NewPort(lines)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Role returns the active role, or nil before the first Reset
func (e *Engine) Role() Role {
	return e.role
}

// Reset puts all lines to high impedance and then configures them for
// role. A host also pulses RESET#. Afterwards the strobes are idle-high
// and the data lines are inputs.
func (e *Engine) Reset(role Role) error {
	if err := e.port.Hiz(); err != nil {
		return err
	}
	e.role = nil
	if err := role.reset(e.port); err != nil {
		return err
	}
	e.role = role
	core.DebugPrintln("[PARALLEL] reset as " + role.String())
	return nil
}

// Hiz releases every line. The engine has no role until the next Reset.
func (e *Engine) Hiz() error {
	e.role = nil
	return e.port.Hiz()
}

func (e *Engine) isHost() bool {
	return e.role != nil && e.role.isHost()
}

func (e *Engine) isPeripheral() bool {
	return e.role != nil && !e.role.isHost()
}

// Transaction runs one cycle per byte of buf as the host. Reads fill buf
// from the bus, writes send it. addr selects address cycles instead of
// data cycles. It returns the number of bytes transferred.
func (e *Engine) Transaction(buf []byte, read, addr bool) (int, error) {
	if len(buf) > MaxTransaction {
		return 0, ErrTransactionTooLong
	}
	if !e.isHost() {
		return 0, ErrWrongRole
	}

	p := e.port
	strobe := core.LineDataStrobe
	if addr {
		strobe = core.LineAddrStrobe
	}
	kind := cycleKind(read, addr)

	if !read {
		// Set write line low
		if err := p.set(core.LineWrite, false); err != nil {
			return 0, err
		}

		// The peripheral releases the data lines before it drops WAIT#,
		// so only drive them once it is ready
		if err := e.poll.Until(core.LineIs(p.lines, core.LineWait, false)); err != nil {
			return 0, err
		}

		// Set data lines as outputs to write to peripheral
		if err := p.dataDirection(true); err != nil {
			return 0, err
		}
	}

	i := 0
	for ; i < len(buf); i++ {
		if err := e.hostCycle(buf, i, kind, strobe); err != nil {
			return i, err
		}
		if e.trace {
			core.RecordTrace(kind.traceEvent(), buf[i])
		}
	}

	if !read {
		// Set data lines back to inputs
		if err := p.dataDirection(false); err != nil {
			return i, err
		}

		// Set write line high
		if err := p.set(core.LineWrite, true); err != nil {
			return i, err
		}
	}

	return i, nil
}

// hostCycle moves buf[i] in one strobe cycle
func (e *Engine) hostCycle(buf []byte, i int, kind CycleKind, strobe core.Line) error {
	p := e.port
	lines := p.lines
	read := kind.Read()

	// Wait for peripheral to indicate it's ready for next cycle
	if err := e.poll.Until(core.LineIs(lines, core.LineWait, false)); err != nil {
		return err
	}

	var b byte
	if !read {
		b = buf[i]
		if err := p.writeData(b); err != nil {
			return err
		}
		lines.DelayMicroseconds(dataSettleUS)
	}

	if err := p.set(strobe, false); err != nil {
		return err
	}
	lines.DelayMicroseconds(strobeSettleUS)

	// Wait for peripheral to indicate it's ready
	if err := e.poll.Until(core.LineIs(lines, core.LineWait, true)); err != nil {
		return err
	}

	if read {
		v, err := p.readData()
		if err != nil {
			return err
		}
		buf[i] = v
	}

	if err := p.set(strobe, true); err != nil {
		return err
	}
	lines.DelayMicroseconds(strobeReleaseUS)

	if !read {
		// Reset data lines to high
		return p.setDataHigh(b)
	}
	return nil
}

// GetAddress reads len(buf) bytes using address cycles
func (e *Engine) GetAddress(buf []byte) (int, error) {
	return e.Transaction(buf, true, true)
}

// SetAddress writes buf using address cycles
func (e *Engine) SetAddress(buf []byte) (int, error) {
	return e.Transaction(buf, false, true)
}

// Read reads len(buf) bytes using data cycles
func (e *Engine) Read(buf []byte) (int, error) {
	return e.Transaction(buf, true, false)
}

// Write writes buf using data cycles
func (e *Engine) Write(buf []byte) (int, error) {
	return e.Transaction(buf, false, false)
}

// ServeCycle answers one host cycle as the peripheral. It returns ok=false
// without waiting when the host holds RESET# low; the caller should retry.
func (e *Engine) ServeCycle(handler CycleHandler) (CycleKind, bool, error) {
	if !e.isPeripheral() {
		return 0, false, ErrWrongRole
	}

	p := e.port
	lines := p.lines

	inReset, err := p.get(core.LineReset)
	if err != nil {
		return 0, false, err
	}
	if !inReset {
		// Give host some time to get ready
		lines.DelayMicroseconds(resetBackoffUS)
		if e.poll.Canceled() {
			return 0, false, core.ErrCanceled
		}
		return 0, false, nil
	}

	// Wait for the host to assert a strobe
	err = e.poll.Until(func() (bool, error) {
		dataN, err := p.get(core.LineDataStrobe)
		if err != nil || !dataN {
			return !dataN, err
		}
		addrN, err := p.get(core.LineAddrStrobe)
		return !addrN, err
	})
	if err != nil {
		return 0, false, err
	}

	writeN, err := p.get(core.LineWrite)
	if err != nil {
		return 0, false, err
	}
	addrN, err := p.get(core.LineAddrStrobe)
	if err != nil {
		return 0, false, err
	}
	kind := cycleKind(writeN, !addrN)

	var b byte
	if kind.Read() {
		// Host is reading, send the data
		handler(kind, &b)
		if err := p.driveData(b); err != nil {
			return kind, false, err
		}
	} else {
		// Host data is valid while the strobe is held
		if b, err = p.readData(); err != nil {
			return kind, false, err
		}
		handler(kind, &b)
	}

	if err := p.set(core.LineWait, true); err != nil {
		return kind, false, err
	}

	// Wait for host to finish strobe
	err = e.poll.Until(func() (bool, error) {
		addrN, err := p.get(core.LineAddrStrobe)
		if err != nil || !addrN {
			return false, err
		}
		return p.get(core.LineDataStrobe)
	})
	if err != nil {
		return kind, false, err
	}

	if kind.Read() {
		// Set data lines back to floating inputs
		if err := p.releaseData(); err != nil {
			return kind, false, err
		}
	}

	// Tell host we're ready for next cycle
	if err := p.set(core.LineWait, false); err != nil {
		return kind, false, err
	}

	if e.trace {
		core.RecordTrace(kind.traceEvent(), b)
	}
	return kind, true, nil
}

// PeripheralCycle answers one host cycle from a single byte slot: host
// reads return *slot, host writes store into it.
func (e *Engine) PeripheralCycle(slot *byte) (CycleKind, bool, error) {
	return e.ServeCycle(func(kind CycleKind, data *byte) {
		if kind.Read() {
			*data = *slot
		} else {
			*slot = *data
		}
	})
}
