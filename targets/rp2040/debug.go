//go:build rp2040

package main

import (
	"machine"

	"ecbridge/core"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART1 (TX=GPIO4, RX=GPIO5)
// at 115200 baud. The command port is USB, so the two never share a wire.
func InitDebugUART() {
	debugUART = machine.UART1
	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO4,
		RX:       machine.GPIO5,
	})
	if err != nil {
		return
	}

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.DebugPrintln("=== ecbridge debug UART ===")
}
