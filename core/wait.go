package core

import (
	"errors"
	"time"
)

// ErrTimeout is returned by a Poller whose deadline passed before the
// condition held.
var ErrTimeout = errors.New("timeout waiting for line condition")

// ErrCanceled is returned by a Poller whose Done channel closed
var ErrCanceled = errors.New("wait canceled")

// Condition is polled by a Poller until it reports true or fails
type Condition func() (bool, error)

// Poller waits for a line condition by busy polling.
//
// The zero value polls forever, which is how the bridge behaves on real
// hardware: an unresponsive peer hangs the caller until external reset.
// Timeout bounds the wait without changing protocol logic.
type Poller struct {
	// Timeout is the longest Until may poll. Zero means no deadline.
	Timeout time.Duration

	// Idle runs between polls (e.g. runtime.Gosched in simulations)
	Idle func()

	// Done aborts the wait once closed. Nil never aborts.
	Done <-chan struct{}
}

// Until polls cond until it returns true. It returns the first error from
// cond, ErrTimeout once the deadline passes, or ErrCanceled once Done
// is closed.
func (p Poller) Until(cond Condition) error {
	var deadline time.Time
	if p.Timeout > 0 {
		deadline = time.Now().Add(p.Timeout)
	}

	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if p.Timeout > 0 && time.Now().After(deadline) {
			return ErrTimeout
		}
		if p.Canceled() {
			return ErrCanceled
		}
		if p.Idle != nil {
			p.Idle()
		}
	}
}

// Canceled reports whether Done has been closed
func (p Poller) Canceled() bool {
	if p.Done == nil {
		return false
	}
	select {
	case <-p.Done:
		return true
	default:
		return false
	}
}

// LineIs returns a condition that holds while line reads level
func LineIs(d LineDriver, line Line, level bool) Condition {
	return func() (bool, error) {
		v, err := d.GetLine(line)
		if err != nil {
			return false, err
		}
		return v == level, nil
	}
}
