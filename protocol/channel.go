package protocol

import (
	"io"

	"tinygo.org/x/drivers"
)

// UARTChannel turns a non-blocking UART into the blocking byte stream the
// dispatcher reads from. While no byte is buffered it runs the idle hook,
// which firmware uses to service periodic work.
type UARTChannel struct {
	uart drivers.UART
	idle func()
}

var _ io.ReadWriter = (*UARTChannel)(nil)

// NewUARTChannel wraps uart. idle may be nil.
func NewUARTChannel(uart drivers.UART, idle func()) *UARTChannel {
	return &UARTChannel{uart: uart, idle: idle}
}

// Read blocks until at least one byte is available
func (c *UARTChannel) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.uart.Buffered() > 0 {
			n, err := c.uart.Read(p)
			if n > 0 || err != nil {
				return n, err
			}
		}
		if c.idle != nil {
			c.idle()
		}
	}
}

// Write sends p
func (c *UARTChannel) Write(p []byte) (int, error) {
	return c.uart.Write(p)
}
