//go:build rp2040

package main

import "machine"

// heartbeat blinks the board LED from the timer list. It keeps blinking
// while the dispatcher waits for serial input, and stops while a bus
// transaction is stuck waiting for the peripheral.
type heartbeat struct {
	led machine.Pin
	on  bool
}

func newHeartbeat(led machine.Pin) *heartbeat {
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &heartbeat{led: led}
}

func (h *heartbeat) OnTick() {
	h.on = !h.on
	h.led.Set(h.on)
}
