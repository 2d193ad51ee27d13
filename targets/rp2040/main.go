//go:build rp2040

package main

import (
	"machine"
	"time"

	"ecbridge/core"
	"ecbridge/parallel"
	"ecbridge/protocol"
)

const heartbeatPeriodUS = 500000

func main() {
	// Clear any watchdog state left from a previous run
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitDebugUART()
	UpdateSystemTime()

	lines := NewRPLineDriver()
	core.SetLineDriver(lines)
	core.RegisterCollaborator(newHeartbeat(machine.LED), heartbeatPeriodUS)

	uart := InitSerial()
	ch := protocol.NewUARTChannel(uart, idle)

	engine := parallel.NewEngine(core.MustLines(), parallel.WithTrace())
	probeFlash(engine)

	d := protocol.NewDispatcher(ch, engine, protocol.WithConsole())
	for _, cmd := range d.Registry().Commands() {
		core.DebugPrintln("command " + string(rune(cmd.Code)) + " " + cmd.Name)
	}
	for {
		d.Serve()
		core.DumpTraceRing()
		core.ClearTraceRing()
		time.Sleep(10 * time.Millisecond)
	}
}

// idle runs while the dispatcher waits for a serial byte
func idle() {
	UpdateSystemTime()
	core.ProcessTimers()
}
