package sim

import "sync"

// SPI NOR commands understood by Flash
const (
	FlashWriteStatus = 0x01
	FlashRead        = 0x03
	FlashWriteDis    = 0x04
	FlashReadStatus  = 0x05
	FlashWriteEn     = 0x06
	FlashSectorErase = 0x20
	FlashChipErase   = 0x60
	FlashChipErase2  = 0xC7
	FlashJEDEC       = 0x9F
	FlashAAIProgram  = 0xAD
)

// Status register bits
const (
	StatusBusy = 0x01
	StatusWEL  = 0x02
	StatusAAI  = 0x40
)

const sectorSize = 4096

// DefaultJEDEC is the manufacturer and device ID of an SST25VF016B
var DefaultJEDEC = [3]byte{0xBF, 0x25, 0x41}

// Flash models an SPI NOR chip with AAI word programming. Commands take
// effect when chip select is released, as on real parts.
type Flash struct {
	mu sync.Mutex

	mem    []byte
	jedec  [3]byte
	status byte

	// BusyPolls is how many status reads report busy after a program or
	// erase completes
	BusyPolls int
	busy      int

	selected bool
	cmd      []byte
	readPos  int
	aaiAddr  int

	log [][]byte
}

// NewFlash creates an erased flash of size bytes
func NewFlash(size int) *Flash {
	f := &Flash{
		mem:   make([]byte, size),
		jedec: DefaultJEDEC,
	}
	for i := range f.mem {
		f.mem[i] = 0xFF
	}
	return f
}

// Select asserts chip select. Selecting an already selected chip is a
// no-op so a transfer may continue across calls.
func (f *Flash) Select() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected {
		return
	}
	f.selected = true
	f.cmd = f.cmd[:0]
	f.readPos = 0
}

// Deselect releases chip select and executes the command received
func (f *Flash) Deselect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.selected {
		return
	}
	f.selected = false
	if len(f.cmd) == 0 {
		return
	}
	f.log = append(f.log, append([]byte(nil), f.cmd...))
	f.execute()
}

// WriteByte shifts one byte into the chip
func (f *Flash) WriteByte(b byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected {
		f.cmd = append(f.cmd, b)
	}
	return nil
}

// ReadByte shifts one byte out of the chip
func (f *Flash) ReadByte() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.selected || len(f.cmd) == 0 {
		return 0xFF, nil
	}

	pos := f.readPos
	f.readPos++

	switch f.cmd[0] {
	case FlashReadStatus:
		if f.busy > 0 {
			f.busy--
			return f.status | StatusBusy, nil
		}
		return f.status, nil
	case FlashJEDEC:
		if pos < len(f.jedec) {
			return f.jedec[pos], nil
		}
	case FlashRead:
		if len(f.cmd) >= 4 {
			addr := address(f.cmd[1:4]) + pos
			if addr < len(f.mem) {
				return f.mem[addr], nil
			}
		}
	}
	return 0xFF, nil
}

func address(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// execute runs the command in f.cmd. Caller holds f.mu.
func (f *Flash) execute() {
	cmd := f.cmd
	switch cmd[0] {
	case FlashWriteEn:
		f.status |= StatusWEL
	case FlashWriteDis:
		f.status &^= StatusWEL | StatusAAI
	case FlashAAIProgram:
		f.aai(cmd)
	case FlashChipErase, FlashChipErase2:
		if f.status&StatusWEL == 0 || f.status&StatusAAI != 0 {
			return
		}
		for i := range f.mem {
			f.mem[i] = 0xFF
		}
		f.status &^= StatusWEL
		f.busy = f.BusyPolls
	case FlashSectorErase:
		if f.status&StatusWEL == 0 || len(cmd) < 4 {
			return
		}
		start := address(cmd[1:4]) &^ (sectorSize - 1)
		for i := start; i < start+sectorSize && i < len(f.mem); i++ {
			f.mem[i] = 0xFF
		}
		f.status &^= StatusWEL
		f.busy = f.BusyPolls
	}
}

// aai handles word programming. The first command carries a start
// address, the following ones only data.
func (f *Flash) aai(cmd []byte) {
	if f.status&StatusWEL == 0 {
		return
	}

	var data []byte
	switch {
	case f.status&StatusAAI == 0 && len(cmd) == 6:
		f.aaiAddr = address(cmd[1:4])
		data = cmd[4:6]
		f.status |= StatusAAI
	case f.status&StatusAAI != 0 && len(cmd) == 3:
		data = cmd[1:3]
	default:
		return
	}

	for _, b := range data {
		if f.aaiAddr < len(f.mem) {
			// Programming can only clear bits
			f.mem[f.aaiAddr] &= b
		}
		f.aaiAddr++
	}
	f.busy = f.BusyPolls
}

// Bytes returns a copy of the flash contents
func (f *Flash) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.mem...)
}

// Commands returns every command executed so far, in order
func (f *Flash) Commands() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.log))
	copy(out, f.log)
	return out
}

// Status returns the status register without consuming a busy poll
func (f *Flash) Status() byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
