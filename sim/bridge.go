package sim

import (
	"context"
	"net"
	"runtime"
	"sync"

	"ecbridge/core"
	"ecbridge/parallel"
	"ecbridge/protocol"
)

// Bridge runs the whole firmware stack in-process: a dispatcher drives
// the host end of a Bus, and a Device with a Flash answers on the other
// end. The serial side is a net.Pipe.
type Bridge struct {
	Bus    *Bus
	Device *Device
	Flash  *Flash

	conn   net.Conn
	server net.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	serveErr error
}

// StartBridge starts the firmware stack around flash. Dispatcher options
// are passed through.
func StartBridge(flash *Flash, opts ...protocol.Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	bus := NewBus()
	client, server := net.Pipe()

	b := &Bridge{
		Bus:    bus,
		Device: NewDevice(bus.DeviceEnd(), flash),
		Flash:  flash,
		conn:   client,
		server: server,
		cancel: cancel,
	}

	engine := parallel.NewEngine(bus.HostEnd(),
		parallel.WithPoller(core.Poller{Idle: runtime.Gosched, Done: ctx.Done()}))
	d := protocol.NewDispatcher(server, engine, opts...)

	b.wg.Add(2)
	go func() {
		defer b.wg.Done()
		b.Device.Run(ctx)
	}()
	go func() {
		defer b.wg.Done()
		err := d.Serve()
		b.mu.Lock()
		b.serveErr = err
		b.mu.Unlock()
	}()
	return b
}

// Conn returns the host side of the serial link
func (b *Bridge) Conn() net.Conn {
	return b.conn
}

// Read implements io.Reader on the serial link
func (b *Bridge) Read(p []byte) (int, error) {
	return b.conn.Read(p)
}

// Write implements io.Writer on the serial link
func (b *Bridge) Write(p []byte) (int, error) {
	return b.conn.Write(p)
}

// Flush is a no-op; the pipe has no buffer
func (b *Bridge) Flush() error {
	return nil
}

// Close stops the firmware and waits for it to exit
func (b *Bridge) Close() error {
	b.conn.Close()
	b.server.Close()
	b.cancel()
	b.wg.Wait()
	return nil
}

// SessionErr returns the error that ended the dispatcher session, or nil
// while it is still running
func (b *Bridge) SessionErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serveErr
}
