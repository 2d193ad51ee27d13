package parallel

import (
	"errors"

	"ecbridge/core"
)

// SPI NOR commands used by accelerated programming
const (
	cmdAAIProgram = 0xAD // auto address increment word program
	cmdReadStatus = 0x05

	statusBusy = 0x01
)

// ErrFlashBusy is returned when the busy poll budget runs out
var ErrFlashBusy = errors.New("flash still busy after poll budget")

// ProgramSession carries the flash address pointer state between
// accelerated program calls.
type ProgramSession struct {
	// Initialized is set once the AAI start address has been sent
	Initialized bool
}

// ProgramOptions tunes Program
type ProgramOptions struct {
	// MaxPolls caps status reads per byte pair. Zero polls until the flash
	// reports ready.
	MaxPolls int
}

// Program writes data to the flash two bytes at a time using AAI
// programming. The first pair of an uninitialized session seeds the start
// address at zero; callers must have erased the flash first. An odd
// trailing byte is not programmed. It returns the number of bytes written.
func Program(spi *SPI, session *ProgramSession, data []byte) (int, error) {
	return ProgramOptions{}.Program(spi, session, data)
}

// Program runs AAI programming with these options
func (o ProgramOptions) Program(spi *SPI, session *ProgramSession, data []byte) (int, error) {
	var cmd [6]byte
	cmd[0] = cmdAAIProgram

	i := 0
	for ; i+1 < len(data); i += 2 {
		// Disable chip to begin command
		if err := spi.Reset(); err != nil {
			return i, err
		}

		if !session.Initialized {
			// Start address 0, then the first pair
			cmd[1], cmd[2], cmd[3] = 0, 0, 0
			cmd[4] = data[i]
			cmd[5] = data[i+1]
			if _, err := spi.Write(cmd[:6]); err != nil {
				return i, err
			}
			session.Initialized = true
		} else {
			cmd[1] = data[i]
			cmd[2] = data[i+1]
			if _, err := spi.Write(cmd[:3]); err != nil {
				return i, err
			}
		}

		if err := o.waitReady(spi); err != nil {
			return i, err
		}
	}

	if i < len(data) {
		core.DebugPrintln("[PARALLEL] aai: trailing byte not programmed")
	}
	return i, nil
}

// waitReady polls the status register until the busy bit clears
func (o ProgramOptions) waitReady(spi *SPI) error {
	var status [1]byte
	for polls := 0; o.MaxPolls == 0 || polls < o.MaxPolls; polls++ {
		// Disable chip to begin command
		if err := spi.Reset(); err != nil {
			return err
		}

		status[0] = cmdReadStatus
		if _, err := spi.Write(status[:]); err != nil {
			return err
		}
		if _, err := spi.Read(status[:]); err != nil {
			return err
		}

		if status[0]&statusBusy == 0 {
			return nil
		}
	}
	return ErrFlashBusy
}
