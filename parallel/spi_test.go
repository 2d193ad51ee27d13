package parallel_test

import (
	"bytes"
	"testing"

	"ecbridge/parallel"
	"ecbridge/sim"
)

func TestSPITransactionBracket(t *testing.T) {
	bus := sim.NewBus()
	dev := startDevice(t, bus, sim.NewFlash(4096))
	spi := parallel.NewSPI(newHost(t, bus))

	// Leave the device addressed somewhere else first
	if _, err := spi.Engine().SetAddress([]byte{0x30}); err != nil {
		t.Fatalf("SetAddress failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		dev.ClearCycles()
		if _, err := spi.Write([]byte{0x9F}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		want := []sim.Cycle{
			{Kind: parallel.AddressWrite, Data: parallel.AddrIndex},
			{Kind: parallel.DataWrite, Data: parallel.ChipEnable},
			{Kind: parallel.AddressWrite, Data: parallel.AddrData},
			{Kind: parallel.DataWrite, Data: 0x9F},
		}
		got := dev.Cycles()
		if len(got) != len(want) {
			t.Fatalf("Expected %d cycles, got %+v", len(want), got)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("Cycle %d: expected %+v, got %+v", j, want[j], got[j])
			}
		}
	}
}

func TestSPIReset(t *testing.T) {
	bus := sim.NewBus()
	dev := startDevice(t, bus, sim.NewFlash(4096))
	spi := parallel.NewSPI(newHost(t, bus))

	if err := spi.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	want := []sim.Cycle{
		{Kind: parallel.AddressWrite, Data: parallel.AddrIndex},
		{Kind: parallel.DataWrite, Data: parallel.ChipDisable},
		{Kind: parallel.AddressWrite, Data: parallel.AddrData},
		{Kind: parallel.DataWrite, Data: 0x00},
	}
	got := dev.Cycles()
	if len(got) != len(want) {
		t.Fatalf("Expected %d cycles, got %+v", len(want), got)
	}
	for j := range want {
		if got[j] != want[j] {
			t.Errorf("Cycle %d: expected %+v, got %+v", j, want[j], got[j])
		}
	}
}

func TestSPIBusJEDEC(t *testing.T) {
	bus := sim.NewBus()
	flash := sim.NewFlash(4096)
	startDevice(t, bus, flash)
	spiBus := parallel.NewSPIBus(parallel.NewSPI(newHost(t, bus)))

	id := make([]byte, 3)
	if err := spiBus.Tx([]byte{sim.FlashJEDEC}, id); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if !bytes.Equal(id, sim.DefaultJEDEC[:]) {
		t.Errorf("Expected JEDEC %x, got %x", sim.DefaultJEDEC, id)
	}

	cmds := flash.Commands()
	if len(cmds) != 1 || cmds[0][0] != sim.FlashJEDEC {
		t.Errorf("Expected one JEDEC command, got %x", cmds)
	}
}

func TestSPIBusLongRead(t *testing.T) {
	bus := sim.NewBus()
	flash := sim.NewFlash(4096)
	startDevice(t, bus, flash)
	spi := parallel.NewSPI(newHost(t, bus))
	spiBus := parallel.NewSPIBus(spi)

	// Program a pattern longer than one transaction
	if err := spiBus.Tx([]byte{sim.FlashWriteEn}, nil); err != nil {
		t.Fatalf("WREN failed: %v", err)
	}
	pattern := make([]byte, 200)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	session := &parallel.ProgramSession{}
	if n, err := parallel.Program(spi, session, pattern); err != nil || n != len(pattern) {
		t.Fatalf("Program = %d, %v", n, err)
	}

	got := make([]byte, len(pattern))
	if err := spiBus.Tx([]byte{sim.FlashRead, 0, 0, 0}, got); err != nil {
		t.Fatalf("Tx failed: %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Errorf("Expected read back %x, got %x", pattern, got)
	}
}
