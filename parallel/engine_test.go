package parallel_test

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"ecbridge/core"
	"ecbridge/parallel"
	"ecbridge/sim"
)

// testPoller keeps waits cooperative and bounded so a broken handshake
// fails the test instead of hanging it
var testPoller = core.Poller{Idle: runtime.Gosched, Timeout: 5 * time.Second}

// startPeripheral serves handler on the device end of bus until the test ends
func startPeripheral(t *testing.T, bus *sim.Bus, handler parallel.CycleHandler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sim.Serve(ctx, parallel.NewEngine(bus.DeviceEnd()), handler)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Peripheral failed: %v", err)
		}
	})
}

// startDevice runs a simulated controller with flash on bus
func startDevice(t *testing.T, bus *sim.Bus, flash *sim.Flash) *sim.Device {
	t.Helper()
	dev := sim.NewDevice(bus.DeviceEnd(), flash)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dev.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Device failed: %v", err)
		}
	})
	return dev
}

func newHost(t *testing.T, bus *sim.Bus) *parallel.Engine {
	t.Helper()
	e := parallel.NewEngine(bus.HostEnd(), parallel.WithPoller(testPoller))
	if err := e.Reset(parallel.Host); err != nil {
		t.Fatalf("Host reset failed: %v", err)
	}
	return e
}

// loopback stores host data writes and replays them on data reads
func loopback() parallel.CycleHandler {
	var queue []byte
	return func(kind parallel.CycleKind, data *byte) {
		switch kind {
		case parallel.DataWrite:
			queue = append(queue, *data)
		case parallel.DataRead:
			if len(queue) > 0 {
				*data = queue[0]
				queue = queue[1:]
			}
		}
	}
}

func TestResetIdleLevels(t *testing.T) {
	for _, hostFirst := range []bool{true, false} {
		bus := sim.NewBus()
		device := parallel.NewEngine(bus.DeviceEnd())
		host := parallel.NewEngine(bus.HostEnd())

		first, second := host, device
		firstRole, secondRole := parallel.Host, parallel.Peripheral
		if !hostFirst {
			first, second = device, host
			firstRole, secondRole = parallel.Peripheral, parallel.Host
		}
		if err := first.Reset(firstRole); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if err := second.Reset(secondRole); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}

		for _, line := range core.DataLines {
			if !bus.Level(line) {
				t.Errorf("hostFirst=%v: Expected %s high after reset", hostFirst, line)
			}
		}
		for _, line := range []core.Line{core.LineDataStrobe, core.LineAddrStrobe, core.LineWrite, core.LineReset} {
			if !bus.Level(line) {
				t.Errorf("hostFirst=%v: Expected %s idle high", hostFirst, line)
			}
		}
		if bus.Level(core.LineWait) {
			t.Errorf("hostFirst=%v: Expected wait line low (ready)", hostFirst)
		}
		if bus.HostEnd().Output(core.LineD0) {
			t.Errorf("hostFirst=%v: Expected host data lines to be inputs", hostFirst)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	bus := sim.NewBus()
	startPeripheral(t, bus, loopback())
	host := newHost(t, bus)

	for _, length := range []int{1, 2, 7, 64, parallel.MaxTransaction} {
		want := make([]byte, length)
		for i := range want {
			want[i] = byte(i*37 + length)
		}

		n, err := host.Write(want)
		if err != nil || n != length {
			t.Fatalf("Write(%d) = %d, %v", length, n, err)
		}
		if bus.HostEnd().Output(core.LineD0) {
			t.Errorf("Expected data direction input after write")
		}
		if !bus.Level(core.LineWrite) {
			t.Errorf("Expected WRITE# released after write")
		}

		got := make([]byte, length)
		n, err = host.Read(got)
		if err != nil || n != length {
			t.Fatalf("Read(%d) = %d, %v", length, n, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Round trip of %d bytes: expected %x, got %x", length, want, got)
		}
	}

	if bus.Conflicts() != 0 {
		t.Errorf("Expected no bus conflicts, got %d", bus.Conflicts())
	}
}

func TestWriteWaitsForPeripheralToReleaseData(t *testing.T) {
	bus := sim.NewBus()
	stop := make(chan struct{})
	host := parallel.NewEngine(bus.HostEnd(),
		parallel.WithPoller(core.Poller{Idle: runtime.Gosched, Done: stop}))
	if err := host.Reset(parallel.Host); err != nil {
		t.Fatalf("Host reset failed: %v", err)
	}

	// Peripheral is still finishing a read: WAIT# high, zeros on the bus
	dev := bus.DeviceEnd()
	dev.SetLine(core.LineWait, true)
	dev.SetDirection(core.LineWait, true)
	for _, line := range core.DataLines {
		dev.SetLine(line, false)
		dev.SetDirection(line, true)
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := host.Write([]byte{0xFF})
		done <- result{n, err}
	}()

	time.Sleep(20 * time.Millisecond)
	if bus.HostEnd().Output(core.LineD0) {
		t.Errorf("Expected host data lines to stay inputs while WAIT# is high")
	}
	if bus.Conflicts() != 0 {
		t.Errorf("Expected no bus conflicts, got %d", bus.Conflicts())
	}

	close(stop)
	r := <-done
	if r.n != 0 || !errors.Is(r.err, core.ErrCanceled) {
		t.Errorf("Expected 0 bytes and ErrCanceled, got %d, %v", r.n, r.err)
	}
}

func TestReadThenWriteHasNoConflicts(t *testing.T) {
	bus := sim.NewBus()
	startPeripheral(t, bus, loopback())
	host := newHost(t, bus)

	for i := 0; i < 200; i++ {
		if _, err := host.Write([]byte{byte(i)}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		got := make([]byte, 1)
		if _, err := host.Read(got); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got[0] != byte(i) {
			t.Fatalf("Expected %#x, got %#x", byte(i), got[0])
		}
	}
	if bus.Conflicts() != 0 {
		t.Errorf("Expected no bus conflicts, got %d", bus.Conflicts())
	}
}

func TestAddressCycles(t *testing.T) {
	bus := sim.NewBus()
	dev := startDevice(t, bus, nil)
	host := newHost(t, bus)

	if _, err := host.SetAddress([]byte{0x42}); err != nil {
		t.Fatalf("SetAddress failed: %v", err)
	}
	got := make([]byte, 1)
	if _, err := host.GetAddress(got); err != nil {
		t.Fatalf("GetAddress failed: %v", err)
	}
	if got[0] != 0x42 {
		t.Errorf("Expected address 0x42, got %#x", got[0])
	}

	if _, err := host.Write([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if dev.Register(0x42) != 1 || dev.Register(0x44) != 3 {
		t.Errorf("Expected auto-incremented register writes, got %d %d", dev.Register(0x42), dev.Register(0x44))
	}

	cycles := dev.Cycles()
	if len(cycles) != 5 || cycles[0].Kind != parallel.AddressWrite || cycles[1].Kind != parallel.AddressRead {
		t.Errorf("Unexpected cycle log %+v", cycles)
	}
}

func TestTransactionTooLong(t *testing.T) {
	bus := sim.NewBus()
	host := newHost(t, bus)

	n, err := host.Write(make([]byte, parallel.MaxTransaction+1))
	if !errors.Is(err, parallel.ErrTransactionTooLong) || n != 0 {
		t.Errorf("Expected ErrTransactionTooLong, got %d, %v", n, err)
	}
}

func TestWrongRole(t *testing.T) {
	bus := sim.NewBus()
	e := parallel.NewEngine(bus.HostEnd())

	if _, err := e.Read(make([]byte, 1)); !errors.Is(err, parallel.ErrWrongRole) {
		t.Errorf("Expected ErrWrongRole before reset, got %v", err)
	}

	if err := e.Reset(parallel.Peripheral); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := e.Write([]byte{1}); !errors.Is(err, parallel.ErrWrongRole) {
		t.Errorf("Expected ErrWrongRole for host op on peripheral, got %v", err)
	}

	if err := e.Reset(parallel.Host); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	var slot byte
	if _, _, err := e.PeripheralCycle(&slot); !errors.Is(err, parallel.ErrWrongRole) {
		t.Errorf("Expected ErrWrongRole for peripheral op on host, got %v", err)
	}
}

func TestPeripheralWaitsForHostReset(t *testing.T) {
	bus := sim.NewBus()
	e := parallel.NewEngine(bus.DeviceEnd())
	if err := e.Reset(parallel.Peripheral); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	// No host: RESET# floats low
	var slot byte
	_, ok, err := e.PeripheralCycle(&slot)
	if err != nil || ok {
		t.Errorf("Expected not-ready cycle, got ok=%v err=%v", ok, err)
	}
}

func TestPeripheralCycleSlot(t *testing.T) {
	bus := sim.NewBus()
	periph := parallel.NewEngine(bus.DeviceEnd(), parallel.WithPoller(testPoller))
	if err := periph.Reset(parallel.Peripheral); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	host := newHost(t, bus)

	type result struct {
		kind parallel.CycleKind
		slot byte
		err  error
	}
	results := make(chan result, 2)
	go func() {
		slot := byte(0x99)
		for i := 0; i < 2; {
			kind, ok, err := periph.PeripheralCycle(&slot)
			if err != nil {
				results <- result{err: err}
				return
			}
			if ok {
				results <- result{kind: kind, slot: slot}
				i++
			}
		}
	}()

	got := make([]byte, 1)
	if _, err := host.Read(got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got[0] != 0x99 {
		t.Errorf("Expected slot byte 0x99, got %#x", got[0])
	}
	if _, err := host.Write([]byte{0x5A}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r := <-results
	if r.err != nil || r.kind != parallel.DataRead {
		t.Errorf("Expected data-read cycle, got %v %v", r.kind, r.err)
	}
	r = <-results
	if r.err != nil || r.kind != parallel.DataWrite || r.slot != 0x5A {
		t.Errorf("Expected data-write of 0x5a, got %v %#x %v", r.kind, r.slot, r.err)
	}
}

func TestUnresponsivePeripheralBlocks(t *testing.T) {
	bus := sim.NewBus()
	stop := make(chan struct{})
	// No deadline: only the test's stop channel ends the wait
	host := parallel.NewEngine(bus.HostEnd(), parallel.WithPoller(core.Poller{Idle: runtime.Gosched, Done: stop}))
	if err := host.Reset(parallel.Host); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := host.Write([]byte{0x01})
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Expected write to block, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(stop)
	if err := <-done; !errors.Is(err, core.ErrCanceled) {
		t.Errorf("Expected ErrCanceled after stop, got %v", err)
	}
}

func TestUnresponsivePeripheralTimeout(t *testing.T) {
	bus := sim.NewBus()
	host := parallel.NewEngine(bus.HostEnd(), parallel.WithPoller(core.Poller{Timeout: 10 * time.Millisecond}))
	if err := host.Reset(parallel.Host); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	n, err := host.Read(make([]byte, 4))
	if !errors.Is(err, core.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bytes transferred, got %d", n)
	}
}

func TestTraceRecordsCycles(t *testing.T) {
	bus := sim.NewBus()
	startPeripheral(t, bus, loopback())
	host := parallel.NewEngine(bus.HostEnd(), parallel.WithPoller(testPoller), parallel.WithTrace())
	if err := host.Reset(parallel.Host); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	core.ClearTraceRing()
	core.SetTraceEnabled(true)
	if _, err := host.Write([]byte{0xAB}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	events := core.TraceSnapshot()
	if len(events) != 1 || events[0].EventType != core.EvtDataWrite || events[0].Value != 0xAB {
		t.Errorf("Expected one data write trace of 0xab, got %+v", events)
	}
}
