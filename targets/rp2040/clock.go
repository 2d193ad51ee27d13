//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"ecbridge/core"
)

// RP2040 timer peripheral, a free running 1MHz counter
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// UpdateSystemTime copies the hardware microsecond counter into core
func UpdateSystemTime() {
	core.SetTime(timerRAWL.Get())
}
