package bridge

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// maxBody is the firmware buffer capacity
const maxBody = 128

// Client speaks the bridge serial command protocol.
//
// Client is not safe for concurrent use: commands on one port must not
// interleave.
type Client struct {
	rw     io.ReadWriter
	config Config
}

// NewClient creates a client on rw, normally a serial.Port
func NewClient(rw io.ReadWriter, opts ...Option) *Client {
	if rw == nil {
		panic("port cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		rw:     rw,
		config: cfg,
	}
}

func checkLength(n int) error {
	if n < 1 || n > maxBody {
		return &LengthError{Length: n, Max: maxBody}
	}
	return nil
}

func (c *Client) send(b []byte) error {
	if _, err := c.rw.Write(b); err != nil {
		return errors.Annotatef(err, "write %q command", b[0])
	}
	return nil
}

// sendCommand writes a header and an optional body in one write
func (c *Client) sendCommand(cmd byte, n int, body []byte) error {
	msg := make([]byte, 0, 2+len(body))
	msg = append(msg, cmd, byte(n-1))
	msg = append(msg, body...)
	return c.send(msg)
}

// quietRead reports whether err only means no data arrived in time
func quietRead(err error) bool {
	if err == nil || err == io.EOF {
		return true
	}
	t, ok := err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}

// readFull reads exactly len(p) bytes. Serial ports report a quiet line
// as empty or timed out reads, so those are retried until ReadTimeout.
func (c *Client) readFull(p []byte) error {
	deadline := time.Now().Add(c.config.ReadTimeout)
	for got := 0; got < len(p); {
		n, err := c.rw.Read(p[got:])
		got += n
		if !quietRead(err) {
			return errors.Trace(err)
		}
		if n > 0 {
			continue
		}
		if c.config.ReadTimeout > 0 && time.Now().After(deadline) {
			return errors.Annotatef(ErrTimeout, "got %d of %d bytes", got, len(p))
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// readAck checks the single byte acknowledgement of an n byte body
func (c *Client) readAck(cmd byte, n int) error {
	var ack [1]byte
	if err := c.readFull(ack[:]); err != nil {
		return errors.Annotatef(err, "%q ack", cmd)
	}
	if ack[0] != byte(n-1) {
		return &AckError{Command: cmd, Expected: byte(n - 1), Actual: ack[0]}
	}
	return nil
}

// BufferSize asks the firmware for its buffer capacity
func (c *Client) BufferSize() (int, error) {
	if err := c.sendCommand('B', 1, nil); err != nil {
		return 0, errors.Trace(err)
	}
	var resp [1]byte
	if err := c.readFull(resp[:]); err != nil {
		return 0, errors.Trace(err)
	}
	return int(resp[0]) + 1, nil
}

// Echo sends data and returns what the firmware sent back
func (c *Client) Echo(data []byte) ([]byte, error) {
	if err := checkLength(len(data)); err != nil {
		return nil, err
	}
	if err := c.sendCommand('E', len(data), data); err != nil {
		return nil, errors.Trace(err)
	}
	resp := make([]byte, len(data))
	if err := c.readFull(resp); err != nil {
		return nil, errors.Trace(err)
	}
	return resp, nil
}

// SetAddress makes the next Read or Write start with an address cycle
func (c *Client) SetAddress(addr byte) error {
	return errors.Trace(c.send([]byte{'A', addr}))
}

// Read reads n bytes with bus data cycles
func (c *Client) Read(n int) ([]byte, error) {
	if err := checkLength(n); err != nil {
		return nil, err
	}
	if err := c.sendCommand('R', n, nil); err != nil {
		return nil, errors.Trace(err)
	}
	resp := make([]byte, n)
	if err := c.readFull(resp); err != nil {
		return nil, errors.Trace(err)
	}
	glog.V(2).Infof("read % x", resp)
	return resp, nil
}

// Write writes data with bus data cycles
func (c *Client) Write(data []byte) error {
	if err := checkLength(len(data)); err != nil {
		return err
	}
	glog.V(2).Infof("write % x", data)
	if err := c.sendCommand('W', len(data), data); err != nil {
		return errors.Trace(err)
	}
	return c.readAck('W', len(data))
}

// Program sends data with back to back accelerated program commands.
// Flash programming continues from where the previous Program call of
// the same run stopped; any other command in between restarts at address
// zero. data must have an even length, otherwise ErrOddLength is
// returned before anything is sent. It returns the number of bytes
// acknowledged.
func (c *Client) Program(data []byte) (int, error) {
	return c.program(data, nil)
}

func (c *Client) program(data []byte, progress func(done int)) (int, error) {
	if len(data)%2 != 0 {
		return 0, errors.Trace(ErrOddLength)
	}
	done := 0
	for done < len(data) {
		n := len(data) - done
		if n > c.config.ChunkSize {
			n = c.config.ChunkSize
		}
		chunk := data[done : done+n]
		if err := c.sendCommand('P', n, chunk); err != nil {
			return done, errors.Trace(err)
		}
		if err := c.readAck('P', n); err != nil {
			return done, err
		}
		done += n
		if progress != nil {
			progress(done)
		}
	}
	return done, nil
}

// Console switches the board into peripheral console mode and copies
// everything it prints to w until ctx is done. The board only leaves
// console mode on reset.
func (c *Client) Console(ctx context.Context, w io.Writer) error {
	if err := c.sendCommand('C', 1, nil); err != nil {
		return errors.Trace(err)
	}

	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := c.rw.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errors.Trace(werr)
			}
		}
		if !quietRead(err) {
			return errors.Trace(err)
		}
		if n == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
}
