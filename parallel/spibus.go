package parallel

import "tinygo.org/x/drivers"

// SPIBus exposes the pass-through layer as a drivers.SPI so generic
// driver code can reach the flash behind the bridge. The bridge is half
// duplex: Tx sends w and then reads len(r) bytes in one chip select.
type SPIBus struct {
	spi *SPI
}

var _ drivers.SPI = (*SPIBus)(nil)

// NewSPIBus wraps spi
func NewSPIBus(spi *SPI) *SPIBus {
	return &SPIBus{spi: spi}
}

// Tx writes w, then reads into r, inside one chip select. Either may be
// nil. Chip select is released on return.
func (b *SPIBus) Tx(w, r []byte) error {
	if err := b.spi.Reset(); err != nil {
		return err
	}
	if err := chunked(w, false, b.spi.Transaction); err != nil {
		return err
	}
	if err := chunked(r, true, b.spi.Transaction); err != nil {
		return err
	}
	return b.spi.Reset()
}

// Transfer writes one byte in the current chip select. Nothing is sampled
// on a half duplex bus, so the result is always zero; use Tx to read.
func (b *SPIBus) Transfer(w byte) (byte, error) {
	buf := [1]byte{w}
	_, err := b.spi.Write(buf[:])
	return 0, err
}

// chunked splits buf into MaxTransaction sized transactions. Later chunks
// follow the chip enable, so the flash sees one continuous transfer.
func chunked(buf []byte, read bool, tx func([]byte, bool) (int, error)) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > MaxTransaction {
			n = MaxTransaction
		}
		if _, err := tx(buf[:n], read); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
