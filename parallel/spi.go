package parallel

// SPI pass-through register protocol. The peripheral exposes an index
// register and a data register; the byte written to the index register
// selects what a data register cycle does to the flash chip select.
const (
	AddrIndex   = 0x05 // INDAR1
	AddrData    = 0x08 // INDDR
	ChipDisable = 0xFE // deassert chip select
	ChipEnable  = 0xFD // assert chip select and follow with payload
)

// SPI drives an SPI flash behind the peripheral through an Engine in the
// host role. It keeps no state between calls.
type SPI struct {
	engine *Engine
}

// NewSPI creates the pass-through layer on top of a host engine
func NewSPI(e *Engine) *SPI {
	return &SPI{engine: e}
}

// Engine returns the underlying transaction engine
func (s *SPI) Engine() *Engine {
	return s.engine
}

// selectRegister writes the index register and leaves the data register
// addressed for the following cycles
func (s *SPI) selectRegister(index byte) error {
	reg := [1]byte{AddrIndex}
	if _, err := s.engine.SetAddress(reg[:]); err != nil {
		return err
	}

	val := [1]byte{index}
	if _, err := s.engine.Write(val[:]); err != nil {
		return err
	}

	reg[0] = AddrData
	_, err := s.engine.SetAddress(reg[:])
	return err
}

// Reset disables the chip, ending any command in progress
func (s *SPI) Reset() error {
	if err := s.selectRegister(ChipDisable); err != nil {
		return err
	}
	zero := [1]byte{0x00}
	_, err := s.engine.Write(zero[:])
	return err
}

// Transaction enables the chip and reads or writes buf as SPI payload.
// The enable bracket is always sent first.
func (s *SPI) Transaction(buf []byte, read bool) (int, error) {
	if err := s.selectRegister(ChipEnable); err != nil {
		return 0, err
	}
	return s.engine.Transaction(buf, read, false)
}

// Read clocks len(buf) bytes in from the flash
func (s *SPI) Read(buf []byte) (int, error) {
	return s.Transaction(buf, true)
}

// Write clocks buf out to the flash
func (s *SPI) Write(buf []byte) (int, error) {
	return s.Transaction(buf, false)
}
