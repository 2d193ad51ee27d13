package core

import "testing"

type tickCounter struct {
	ticks int
}

func (c *tickCounter) OnTick() {
	c.ticks++
}

func TestCollaboratorTicks(t *testing.T) {
	ResetTimers()
	SetTime(0)

	c := &tickCounter{}
	RegisterCollaborator(c, 1000)

	SetTime(999)
	ProcessTimers()
	if c.ticks != 0 {
		t.Errorf("Expected no tick before the period, got %d", c.ticks)
	}

	SetTime(1000)
	ProcessTimers()
	if c.ticks != 1 {
		t.Errorf("Expected 1 tick, got %d", c.ticks)
	}

	SetTime(2000)
	ProcessTimers()
	if c.ticks != 2 {
		t.Errorf("Expected 2 ticks, got %d", c.ticks)
	}

	// A long stall runs the collaborator once, not once per missed period
	SetTime(10000)
	ProcessTimers()
	if c.ticks != 3 {
		t.Errorf("Expected 3 ticks after stall, got %d", c.ticks)
	}
}

func TestCollaboratorOrdering(t *testing.T) {
	ResetTimers()
	SetTime(0)

	var order []string
	fast := &orderRecorder{name: "fast", order: &order}
	slow := &orderRecorder{name: "slow", order: &order}
	RegisterCollaborator(slow, 500)
	RegisterCollaborator(fast, 100)

	SetTime(500)
	ProcessTimers()

	if len(order) != 2 || order[0] != "fast" || order[1] != "slow" {
		t.Errorf("Expected [fast slow], got %v", order)
	}
}

type orderRecorder struct {
	name  string
	order *[]string
}

func (r *orderRecorder) OnTick() {
	*r.order = append(*r.order, r.name)
}

func TestCancelTimer(t *testing.T) {
	ResetTimers()
	SetTime(0)

	c := &tickCounter{}
	timer := RegisterCollaborator(c, 10)
	CancelTimer(timer)

	SetTime(100)
	ProcessTimers()
	if c.ticks != 0 {
		t.Errorf("Expected cancelled collaborator to stay idle, got %d ticks", c.ticks)
	}
}

func TestTimerWraparound(t *testing.T) {
	ResetTimers()
	SetTime(0xFFFFFF00)

	c := &tickCounter{}
	RegisterCollaborator(c, 0x200)

	SetTime(0x00000050)
	ProcessTimers()
	if c.ticks != 0 {
		t.Errorf("Expected no tick before wrapped deadline, got %d", c.ticks)
	}

	SetTime(0x00000100)
	ProcessTimers()
	if c.ticks != 1 {
		t.Errorf("Expected tick after wrapped deadline, got %d", c.ticks)
	}
}
