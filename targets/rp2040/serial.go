//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"
)

// serialUART adapts machine.Serial (USB CDC on RP2040) to drivers.UART.
// The Serialer interface only reads single bytes.
type serialUART struct {
	s machine.Serialer
}

var _ drivers.UART = serialUART{}

func (u serialUART) Buffered() int {
	return u.s.Buffered()
}

func (u serialUART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.s.Buffered() > 0 {
		b, err := u.s.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (u serialUART) Write(p []byte) (int, error) {
	return u.s.Write(p)
}

// InitSerial configures the command port
func InitSerial() drivers.UART {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 1000000})
	return serialUART{s: machine.Serial}
}
