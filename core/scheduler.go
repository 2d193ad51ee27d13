package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// timerBefore compares tick counts across uint32 wraparound
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer adds a timer to the schedule.
// Only the main loop touches the timer list, so no locking is done.
func ScheduleTimer(t *Timer) {
	insertTimer(t)
}

// insertTimer inserts a timer in sorted order by WakeTime
func insertTimer(t *Timer) {
	if timerList == nil || timerBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && timerBefore(current.Next.WakeTime, t.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// TimerDispatch processes due timers
func TimerDispatch() {
	for timerList != nil && !timerBefore(currentTime, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}

// Collaborator is a supporting firmware subsystem (keyboard scan, PMC,
// PECI, fan control, power sequencing) that only needs periodic ticks.
type Collaborator interface {
	OnTick()
}

// collaboratorTimer binds a Collaborator to its periodic timer
type collaboratorTimer struct {
	Timer
	c      Collaborator
	period uint32
}

// RegisterCollaborator ticks c every periodUS microseconds from the
// main loop, starting one period from now.
func RegisterCollaborator(c Collaborator, periodUS uint32) *Timer {
	ct := &collaboratorTimer{
		c:      c,
		period: TimerFromUS(periodUS),
	}
	if ct.period == 0 {
		ct.period = 1
	}
	ct.Timer.WakeTime = GetTime() + ct.period
	ct.Timer.Handler = func(t *Timer) uint8 {
		ct.c.OnTick()
		t.WakeTime += ct.period
		// Skip missed periods instead of bursting to catch up
		if timerBefore(t.WakeTime, currentTime) {
			t.WakeTime = currentTime + ct.period
		}
		return SF_RESCHEDULE
	}
	ScheduleTimer(&ct.Timer)
	return &ct.Timer
}

// CancelTimer removes t from the schedule if present
func CancelTimer(t *Timer) {
	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// ResetTimers drops every scheduled timer (for testing)
func ResetTimers() {
	timerList = nil
	currentTime = 0
}
