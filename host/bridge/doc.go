// Package bridge talks to bridge firmware over its serial command
// protocol.
//
// Client exposes the raw commands: buffer size, echo, address prefix,
// bus read and write, accelerated program and console. Flasher builds SPI
// flash operations on top of Client using the same index and data
// register protocol the firmware uses for accelerated programming.
//
// Basic usage:
//
//	port, _ := serial.Open(serial.DefaultConfig("/dev/ttyACM0"))
//	client := bridge.NewClient(port)
//	flasher := bridge.NewFlasher(client,
//	    bridge.WithProgressCallback(func(p bridge.Progress) {
//	        fmt.Printf("%s %d/%d\n", p.Phase, p.Done, p.Total)
//	    }),
//	)
//	err := flasher.ProgramImage(ctx, image)
package bridge
