package core

import "testing"

func TestTraceRing(t *testing.T) {
	ClearTraceRing()
	SetTraceEnabled(true)

	RecordTrace(EvtCommand, 'R')
	RecordTrace(EvtDataRead, 0x5a)

	events := TraceSnapshot()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].EventType != EvtCommand || events[0].Value != 'R' {
		t.Errorf("Unexpected first event %+v", events[0])
	}
	if events[1].Value != 0x5a {
		t.Errorf("Expected second value 0x5a, got %#x", events[1].Value)
	}
}

func TestTraceRingWraps(t *testing.T) {
	ClearTraceRing()
	for i := 0; i < TraceRingSize+5; i++ {
		RecordTrace(EvtDataWrite, uint8(i))
	}

	events := TraceSnapshot()
	if len(events) != TraceRingSize {
		t.Fatalf("Expected %d events, got %d", TraceRingSize, len(events))
	}
	if events[0].Value != 5 {
		t.Errorf("Expected oldest surviving value 5, got %d", events[0].Value)
	}
}

func TestDumpTraceRing(t *testing.T) {
	ClearTraceRing()
	RecordTrace(EvtAbort, 0xff)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetDebugEnabled(true)
	defer SetDebugEnabled(false)

	DumpTraceRing()
	if len(lines) != 3 {
		t.Fatalf("Expected header, event and footer, got %v", lines)
	}
	if lines[1] != "[TRACE] ABORT! value=0xff clock="+Utoa(GetTime()) {
		t.Errorf("Unexpected dump line %q", lines[1])
	}
}

func TestStrutil(t *testing.T) {
	if Utoa(4294967295) != "4294967295" {
		t.Errorf("Expected 4294967295, got %s", Utoa(4294967295))
	}
	if Utoa(0) != "0" {
		t.Errorf("Expected 0, got %s", Utoa(0))
	}
	if Hex8(0xAD) != "0xad" {
		t.Errorf("Expected 0xad, got %s", Hex8(0xAD))
	}
}
