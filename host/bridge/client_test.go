package bridge

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/juju/errors"

	"ecbridge/protocol"
	"ecbridge/sim"
)

func newSimClient(t *testing.T, opts ...Option) (*Client, *sim.Bridge) {
	t.Helper()
	b := sim.StartBridge(sim.NewFlash(64 * 1024))
	t.Cleanup(func() { b.Close() })
	return NewClient(b, opts...), b
}

func TestClientBufferSize(t *testing.T) {
	c, _ := newSimClient(t)

	size, err := c.BufferSize()
	if err != nil {
		t.Fatalf("BufferSize failed: %v", err)
	}
	if size != 128 {
		t.Errorf("Expected 128, got %d", size)
	}
}

func TestClientEcho(t *testing.T) {
	c, _ := newSimClient(t)

	got, err := c.Echo([]byte("hello"))
	if err != nil {
		t.Fatalf("Echo failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}

	if _, err := c.Echo(nil); err == nil {
		t.Error("Expected error for empty echo")
	}
	if _, err := c.Echo(make([]byte, 129)); err == nil {
		t.Error("Expected error for oversized echo")
	}
}

func TestClientReadWrite(t *testing.T) {
	c, b := newSimClient(t)

	if err := c.SetAddress(0x40); err != nil {
		t.Fatalf("SetAddress failed: %v", err)
	}
	if err := c.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if b.Device.Register(0x42) != 3 {
		t.Errorf("Expected register 0x42 = 3, got %d", b.Device.Register(0x42))
	}

	if err := c.SetAddress(0x40); err != nil {
		t.Fatalf("SetAddress failed: %v", err)
	}
	got, err := c.Read(3)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("Expected 01 02 03, got %x", got)
	}
}

func TestClientLengthError(t *testing.T) {
	c, _ := newSimClient(t)

	_, err := c.Read(0)
	if _, ok := errors.Cause(err).(*LengthError); !ok {
		t.Errorf("Expected *LengthError, got %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	c, b := newSimClient(t, WithReadTimeout(50*time.Millisecond))

	// An address prefix gets no reply
	if err := c.SetAddress(0x01); err != nil {
		t.Fatalf("SetAddress failed: %v", err)
	}
	b.Conn().SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	var resp [1]byte
	err := c.readFull(resp[:])
	if errors.Cause(err) != ErrTimeout {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

// badAck answers every command with a fixed byte
type badAck struct {
	bytes.Buffer
}

func (b *badAck) Read(p []byte) (int, error) {
	p[0] = 0x7F
	return 1, nil
}

func TestClientAckMismatch(t *testing.T) {
	c := NewClient(&badAck{})

	err := c.Write([]byte{1, 2})
	ackErr, ok := errors.Cause(err).(*AckError)
	if !ok {
		t.Fatalf("Expected *AckError, got %v", err)
	}
	if ackErr.Command != 'W' || ackErr.Expected != 1 || ackErr.Actual != 0x7F {
		t.Errorf("Unexpected ack error %+v", ackErr)
	}
}

func TestClientProgramRejectsOddLength(t *testing.T) {
	c, b := newSimClient(t)

	n, err := c.Program([]byte{0x11, 0x22, 0x33})
	if errors.Cause(err) != ErrOddLength {
		t.Errorf("Expected ErrOddLength, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes programmed, got %d", n)
	}
	if cmds := b.Flash.Commands(); len(cmds) != 0 {
		t.Errorf("Expected no flash commands, got %x", cmds)
	}

	if n, err := c.Program([]byte{0x11, 0x22}); err != nil || n != 2 {
		t.Errorf("Expected 2 bytes acknowledged, got %d, %v", n, err)
	}
}

func TestWithChunkSize(t *testing.T) {
	cfg := defaultConfig()
	WithChunkSize(33)(&cfg)
	if cfg.ChunkSize != 32 {
		t.Errorf("Expected even chunk size 32, got %d", cfg.ChunkSize)
	}
	WithChunkSize(500)(&cfg)
	if cfg.ChunkSize != 32 {
		t.Errorf("Expected out of range size to be ignored, got %d", cfg.ChunkSize)
	}
}

func TestClientConsole(t *testing.T) {
	b := sim.StartBridge(sim.NewFlash(1024), protocol.WithConsole())
	defer b.Close()
	c := NewClient(b)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	b.Conn().SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	var out bytes.Buffer
	if err := c.Console(ctx, &out); err != nil {
		t.Fatalf("Console failed: %v", err)
	}
	if out.String() != protocol.ConsoleBanner {
		t.Errorf("Expected banner %q, got %q", protocol.ConsoleBanner, out.String())
	}
}
