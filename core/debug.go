package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TraceEvent captures one bus event for post-mortem analysis
type TraceEvent struct {
	EventType uint8  // Event type code
	Value     uint8  // Byte moved or command seen
	Clock     uint32 // System clock at event
}

// Event type codes
const (
	EvtAddrWrite = 1 // Host address write cycle
	EvtAddrRead  = 2 // Host address read cycle
	EvtDataWrite = 3 // Host data write cycle
	EvtDataRead  = 4 // Host data read cycle
	EvtCommand   = 5 // Serial command header received
	EvtAbort     = 6 // Dispatch loop aborted
)

const (
	TraceRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active.
	// Debug output must never share the command UART.
	debugEnabled bool = false

	traceRing     [TraceRingSize]TraceEvent
	traceRingHead uint8
	traceEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// SetTraceEnabled turns bus event capture on or off
func SetTraceEnabled(enabled bool) {
	traceEnabled = enabled
}

// RecordTrace captures a bus event in the ring buffer.
// It never blocks and never allocates.
func RecordTrace(eventType, value uint8) {
	if !traceEnabled {
		return
	}
	idx := traceRingHead
	traceRing[idx] = TraceEvent{
		EventType: eventType,
		Value:     value,
		Clock:     GetTime(),
	}
	traceRingHead = (idx + 1) % TraceRingSize
}

// TraceSnapshot returns the recorded events, oldest first
func TraceSnapshot() []TraceEvent {
	events := make([]TraceEvent, 0, TraceRingSize)
	start := traceRingHead
	for i := uint8(0); i < TraceRingSize; i++ {
		evt := traceRing[(start+i)%TraceRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		events = append(events, evt)
	}
	return events
}

// DumpTraceRing outputs the trace ring buffer (call after an abort)
func DumpTraceRing() {
	if !debugEnabled || debugPrintln == nil {
		return
	}

	debugPrintln("[TRACE] === Bus Trace Dump ===")
	for _, evt := range TraceSnapshot() {
		var name string
		switch evt.EventType {
		case EvtAddrWrite:
			name = "ADDR_WR"
		case EvtAddrRead:
			name = "ADDR_RD"
		case EvtDataWrite:
			name = "DATA_WR"
		case EvtDataRead:
			name = "DATA_RD"
		case EvtCommand:
			name = "COMMAND"
		case EvtAbort:
			name = "ABORT!"
		default:
			name = "UNKNOWN"
		}

		debugPrintln("[TRACE] " + name +
			" value=" + Hex8(evt.Value) +
			" clock=" + Utoa(evt.Clock))
	}
	debugPrintln("[TRACE] === End Dump ===")
}

// ClearTraceRing clears the trace buffer
func ClearTraceRing() {
	for i := range traceRing {
		traceRing[i] = TraceEvent{}
	}
	traceRingHead = 0
}
