package protocol

import (
	"io"

	"ecbridge/core"
	"ecbridge/parallel"
)

// BufferSize is the capacity of the dispatcher buffer and the largest
// body a command may carry
const BufferSize = parallel.MaxTransaction

// Command bytes of the serial protocol
const (
	CmdAddress    = 'A'
	CmdBufferSize = 'B'
	CmdConsole    = 'C'
	CmdEcho       = 'E'
	CmdProgram    = 'P'
	CmdRead       = 'R'
	CmdWrite      = 'W'
)

// ConsoleBanner is written when the console command switches to
// peripheral mode
const ConsoleBanner = "Entering console mode\n"

// Dispatcher reads command headers from a serial channel and runs them
// against the parallel bus. It owns the only data buffer.
type Dispatcher struct {
	ch       io.ReadWriter
	engine   *parallel.Engine
	spi      *parallel.SPI
	registry *Registry
	program  parallel.ProgramOptions
	console  bool

	session Session
	buf     [BufferSize]byte
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithConsole enables the console command. Only boards that can act as a
// bus peripheral should set it.
func WithConsole() Option {
	return func(d *Dispatcher) {
		d.console = true
	}
}

// WithRegistry replaces the standard command set
func WithRegistry(r *Registry) Option {
	return func(d *Dispatcher) {
		d.registry = r
	}
}

// WithProgramOptions sets the options used by the program command
func WithProgramOptions(o parallel.ProgramOptions) Option {
	return func(d *Dispatcher) {
		d.program = o
	}
}

// NewDispatcher creates a dispatcher serving ch with engine
func NewDispatcher(ch io.ReadWriter, engine *parallel.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ch:     ch,
		engine: engine,
		spi:    parallel.NewSPI(engine),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = NewBridgeRegistry(d.console)
	}
	return d
}

// Registry returns the command set in use
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Serve resets the bus as host and runs commands until one fails. The
// port is left high-impedance and the error returned; the caller may
// call Serve again to restart the session.
func (d *Dispatcher) Serve() error {
	d.session.Reset()

	err := d.engine.Reset(parallel.Host)
	for err == nil {
		err = d.Step()
	}

	core.RecordTrace(core.EvtAbort, 0)
	if core.IsDebugEnabled() {
		core.DebugPrintln("[BRIDGE] session aborted: " + err.Error())
	}
	if herr := d.engine.Hiz(); herr != nil && core.IsDebugEnabled() {
		core.DebugPrintln("[BRIDGE] release port: " + herr.Error())
	}
	return err
}

// Step reads one command header and runs the command
func (d *Dispatcher) Step() error {
	hdr := d.buf[:2]
	if _, err := io.ReadFull(d.ch, hdr); err != nil {
		return err
	}
	code, arg := hdr[0], hdr[1]
	core.RecordTrace(core.EvtCommand, code)

	// Address prefix has no body
	if code == CmdAddress {
		d.session.SetAddress(arg)
		return nil
	}
	if code != CmdProgram {
		d.session.EndProgram()
	}

	// Length is received data + 1, truncated to the buffer
	length := int(arg) + 1
	if length > len(d.buf) {
		length = len(d.buf)
	}

	cmd, ok := d.registry.Lookup(code)
	if !ok {
		return nil
	}
	return cmd.Handler(d, d.buf[:length])
}

// readBody fills body from the serial channel
func (d *Dispatcher) readBody(body []byte) error {
	_, err := io.ReadFull(d.ch, body)
	return err
}

// reply writes p to the serial channel
func (d *Dispatcher) reply(p []byte) error {
	_, err := d.ch.Write(p)
	return err
}

// ack sends the single byte acknowledgement of a body of length n
func (d *Dispatcher) ack(n int) error {
	d.buf[0] = byte(n - 1)
	return d.reply(d.buf[:1])
}

// flushAddress sends a pending address prefix as one address cycle
func (d *Dispatcher) flushAddress() error {
	addr, ok := d.session.TakeAddress()
	if !ok {
		return nil
	}
	a := [1]byte{addr}
	_, err := d.engine.SetAddress(a[:])
	return err
}
