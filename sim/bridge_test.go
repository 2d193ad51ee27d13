package sim_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"ecbridge/sim"
)

func TestBridgeEcho(t *testing.T) {
	b := sim.StartBridge(sim.NewFlash(1024))
	defer b.Close()

	b.Conn().SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := b.Write([]byte{'E', 0x01, 'o', 'k'}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := make([]byte, 2)
	if _, err := io.ReadFull(b, got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, []byte("ok")) {
		t.Errorf("Expected ok, got %q", got)
	}
	if b.SessionErr() != nil {
		t.Errorf("Expected running session, got %v", b.SessionErr())
	}
}

func TestBridgeCloseEndsSession(t *testing.T) {
	b := sim.StartBridge(sim.NewFlash(1024))
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if b.SessionErr() == nil {
		t.Error("Expected the session to end with an error")
	}
}
