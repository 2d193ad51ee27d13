//go:build rp2040

package main

import (
	"ecbridge/core"
	"ecbridge/parallel"
)

// probeFlash reads the JEDEC ID of the flash behind the controller and
// logs it on the debug UART. Without a controller WAIT# stays pulled up
// and the first cycle would never start, so the probe is skipped then.
func probeFlash(engine *parallel.Engine) {
	if !core.IsDebugEnabled() {
		return
	}
	if err := engine.Reset(parallel.Host); err != nil {
		core.DebugPrintln("probe: reset: " + err.Error())
		return
	}

	waitHigh, err := core.MustLines().GetLine(core.LineWait)
	if err != nil || waitHigh {
		core.DebugPrintln("probe: no controller on the bus")
		return
	}

	bus := parallel.NewSPIBus(parallel.NewSPI(engine))
	id := make([]byte, 3)
	if err := bus.Tx([]byte{0x9F}, id); err != nil {
		core.DebugPrintln("probe: " + err.Error())
		return
	}
	core.DebugPrintln("flash JEDEC " + core.Hex8(id[0]) + " " + core.Hex8(id[1]) + " " + core.Hex8(id[2]))
}
