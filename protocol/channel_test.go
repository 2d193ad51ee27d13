package protocol

import (
	"bytes"
	"testing"
)

// fakeUART delivers pending bytes only after a number of idle calls
type fakeUART struct {
	pending []byte
	out     bytes.Buffer
}

func (u *fakeUART) Read(p []byte) (int, error) {
	n := copy(p, u.pending)
	u.pending = u.pending[n:]
	return n, nil
}

func (u *fakeUART) Write(p []byte) (int, error) {
	return u.out.Write(p)
}

func (u *fakeUART) Buffered() int {
	return len(u.pending)
}

func TestUARTChannelIdlesUntilData(t *testing.T) {
	uart := &fakeUART{}
	idles := 0
	ch := NewUARTChannel(uart, func() {
		idles++
		if idles == 3 {
			uart.pending = []byte{'E', 0x00}
		}
	})

	buf := make([]byte, 2)
	n, err := ch.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 2 || buf[0] != 'E' {
		t.Errorf("Expected header, got %d bytes %v", n, buf[:n])
	}
	if idles != 3 {
		t.Errorf("Expected 3 idle calls, got %d", idles)
	}

	if _, err := ch.Write([]byte("ok")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if uart.out.String() != "ok" {
		t.Errorf("Expected ok written, got %q", uart.out.String())
	}
}

func TestRegistry(t *testing.T) {
	r := NewBridgeRegistry(false)
	if n := len(r.Commands()); n != 5 {
		t.Errorf("Expected 5 commands, got %d", n)
	}
	if _, ok := r.Lookup(CmdConsole); ok {
		t.Error("Expected no console command without console support")
	}

	r = NewBridgeRegistry(true)
	cmd, ok := r.Lookup(CmdConsole)
	if !ok || cmd.Name != "console" {
		t.Errorf("Expected console command, got %+v", cmd)
	}

	cmds := r.Commands()
	if len(cmds) != 6 {
		t.Errorf("Expected 6 commands with console, got %d", len(cmds))
	}
	for i := 1; i < len(cmds); i++ {
		if cmds[i-1].Code >= cmds[i].Code {
			t.Errorf("Expected commands ordered by code, got %c before %c", cmds[i-1].Code, cmds[i].Code)
		}
	}
}

func TestSession(t *testing.T) {
	var s Session
	if _, ok := s.TakeAddress(); ok {
		t.Error("Expected no pending address")
	}

	s.SetAddress(0x10)
	addr, ok := s.TakeAddress()
	if !ok || addr != 0x10 {
		t.Errorf("Expected pending 0x10, got %#x %v", addr, ok)
	}
	if _, ok := s.TakeAddress(); ok {
		t.Error("Expected address to be consumed")
	}

	s.Program.Initialized = true
	s.EndProgram()
	if s.Program.Initialized {
		t.Error("Expected EndProgram to clear the program session")
	}
}
