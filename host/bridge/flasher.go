package bridge

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"ecbridge/parallel"
	"ecbridge/protocol"
)

// SPI NOR commands
const (
	flashRead       = 0x03
	flashWriteDis   = 0x04
	flashReadStatus = 0x05
	flashWriteEn    = 0x06
	flashChipErase  = 0x60
	flashJEDEC      = 0x9F

	statusBusy = 0x01
)

// Flasher drives the SPI flash behind the bridge
type Flasher struct {
	c      *Client
	config Config
}

// NewFlasher creates a flasher on c. Options override the client's.
func NewFlasher(c *Client, opts ...Option) *Flasher {
	cfg := c.config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Flasher{c: c, config: cfg}
}

// Client returns the underlying command client
func (f *Flasher) Client() *Client {
	return f.c
}

func (f *Flasher) reportProgress(p Progress) {
	if f.config.ProgressCallback != nil {
		f.config.ProgressCallback(p)
	}
}

// selectRegister points the index register at index and leaves the data
// register addressed
func (f *Flasher) selectRegister(index byte) error {
	if err := f.c.SetAddress(parallel.AddrIndex); err != nil {
		return err
	}
	if err := f.c.Write([]byte{index}); err != nil {
		return err
	}
	return f.c.SetAddress(parallel.AddrData)
}

// SPIReset releases chip select, completing the command in progress
func (f *Flasher) SPIReset() error {
	if err := f.selectRegister(parallel.ChipDisable); err != nil {
		return errors.Annotatef(err, "spi reset")
	}
	return errors.Trace(f.c.Write([]byte{0x00}))
}

// SPIWrite clocks data out to the flash with chip select asserted
func (f *Flasher) SPIWrite(data []byte) error {
	if err := f.selectRegister(parallel.ChipEnable); err != nil {
		return errors.Annotatef(err, "spi select")
	}
	for len(data) > 0 {
		n := len(data)
		if n > f.config.ChunkSize {
			n = f.config.ChunkSize
		}
		if err := f.c.Write(data[:n]); err != nil {
			return errors.Trace(err)
		}
		data = data[n:]
	}
	return nil
}

// SPIRead clocks n bytes in from the flash with chip select asserted
func (f *Flasher) SPIRead(n int) ([]byte, error) {
	return f.spiRead(n, nil)
}

func (f *Flasher) spiRead(n int, progress func(done int)) ([]byte, error) {
	if err := f.selectRegister(parallel.ChipEnable); err != nil {
		return nil, errors.Annotatef(err, "spi select")
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := n - len(out)
		if chunk > f.config.ChunkSize {
			chunk = f.config.ChunkSize
		}
		data, err := f.c.Read(chunk)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, data...)
		if progress != nil {
			progress(len(out))
		}
	}
	return out, nil
}

// Command runs one complete flash command: it sends cmd, reads n
// response bytes and releases chip select.
func (f *Flasher) Command(cmd []byte, n int) ([]byte, error) {
	return f.command(cmd, n, nil)
}

func (f *Flasher) command(cmd []byte, n int, progress func(done int)) ([]byte, error) {
	if err := f.SPIReset(); err != nil {
		return nil, err
	}
	if err := f.SPIWrite(cmd); err != nil {
		return nil, err
	}
	var resp []byte
	if n > 0 {
		var err error
		if resp, err = f.spiRead(n, progress); err != nil {
			return nil, err
		}
	}
	if err := f.SPIReset(); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadJEDEC returns the manufacturer and device ID
func (f *Flasher) ReadJEDEC() ([3]byte, error) {
	var id [3]byte
	resp, err := f.Command([]byte{flashJEDEC}, len(id))
	if err != nil {
		return id, errors.Annotatef(err, "read jedec id")
	}
	copy(id[:], resp)
	return id, nil
}

// ReadStatus returns the flash status register
func (f *Flasher) ReadStatus() (byte, error) {
	resp, err := f.Command([]byte{flashReadStatus}, 1)
	if err != nil {
		return 0, errors.Annotatef(err, "read status")
	}
	return resp[0], nil
}

// WriteEnable sets the write enable latch
func (f *Flasher) WriteEnable() error {
	_, err := f.Command([]byte{flashWriteEn}, 0)
	return errors.Annotatef(err, "write enable")
}

// WriteDisable clears the write enable latch and ends AAI mode
func (f *Flasher) WriteDisable() error {
	_, err := f.Command([]byte{flashWriteDis}, 0)
	return errors.Annotatef(err, "write disable")
}

// WaitReady polls the status register until the busy bit clears
func (f *Flasher) WaitReady(ctx context.Context) error {
	deadline := time.Now().Add(f.config.BusyTimeout)
	for {
		status, err := f.ReadStatus()
		if err != nil {
			return err
		}
		if status&statusBusy == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		if f.config.BusyTimeout > 0 && time.Now().After(deadline) {
			return errors.Annotatef(ErrTimeout, "flash busy, status 0x%02X", status)
		}
	}
}

// EraseChip erases the whole flash and waits for it to finish
func (f *Flasher) EraseChip(ctx context.Context) error {
	start := time.Now()
	f.reportProgress(Progress{Phase: PhaseErasing})

	if err := f.WriteEnable(); err != nil {
		return err
	}
	if _, err := f.Command([]byte{flashChipErase}, 0); err != nil {
		return errors.Annotatef(err, "chip erase")
	}
	if err := f.WaitReady(ctx); err != nil {
		return errors.Annotatef(err, "chip erase")
	}

	glog.Infof("flash erased in %s", time.Since(start))
	return nil
}

// ReadAt reads n bytes of flash starting at addr
func (f *Flasher) ReadAt(ctx context.Context, addr, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	start := time.Now()
	cmd := []byte{flashRead, byte(addr >> 16), byte(addr >> 8), byte(addr)}
	data, err := f.command(cmd, n, func(done int) {
		f.reportProgress(Progress{
			Phase:       PhaseReading,
			Done:        done,
			Total:       n,
			ElapsedTime: time.Since(start),
		})
	})
	if err != nil {
		return nil, errors.Annotatef(err, "read %d bytes at 0x%06X", n, addr)
	}
	return data, nil
}

// ProgramImage writes image to an erased flash from address zero with
// accelerated programming. An odd length is padded with 0xFF.
func (f *Flasher) ProgramImage(ctx context.Context, image []byte) error {
	if len(image) == 0 {
		return nil
	}
	if len(image)%2 != 0 {
		image = append(append([]byte(nil), image...), 0xFF)
	}

	start := time.Now()
	if err := f.WriteEnable(); err != nil {
		return err
	}

	client := *f.c
	client.config.ChunkSize = f.config.ChunkSize
	done, err := client.program(image, func(done int) {
		f.reportProgress(Progress{
			Phase:       PhaseProgramming,
			Done:        done,
			Total:       len(image),
			ElapsedTime: time.Since(start),
		})
	})
	if err != nil {
		return errors.Annotatef(err, "program at offset 0x%06X", done)
	}

	if err := f.WriteDisable(); err != nil {
		return err
	}
	if err := f.WaitReady(ctx); err != nil {
		return err
	}

	f.reportProgress(Progress{
		Phase:       PhaseComplete,
		Done:        len(image),
		Total:       len(image),
		ElapsedTime: time.Since(start),
	})
	glog.Infof("programmed %d bytes in %s", len(image), time.Since(start))
	return nil
}

// Verify reads back len(image) bytes and compares them with image
func (f *Flasher) Verify(ctx context.Context, image []byte) error {
	saved := f.config.ProgressCallback
	if saved != nil {
		f.config.ProgressCallback = func(p Progress) {
			p.Phase = PhaseVerifying
			saved(p)
		}
		defer func() { f.config.ProgressCallback = saved }()
	}

	data, err := f.ReadAt(ctx, 0, len(image))
	if err != nil {
		return errors.Trace(err)
	}

	want, got := protocol.CRC16(image), protocol.CRC16(data)
	for i := range image {
		if data[i] != image[i] {
			return &VerifyError{Offset: i, ExpectedCRC: want, ActualCRC: got}
		}
	}
	glog.V(1).Infof("verified %d bytes, crc 0x%04X", len(image), got)
	return nil
}
