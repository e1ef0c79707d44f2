// Package clock provides the wall-clock abstraction the scheduling core is
// built against, so tests can drive time deterministically instead of
// sleeping on the real clock.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Cancel is idempotent: cancelling an
// already-fired or already-cancelled handle is a safe no-op.
type Handle interface {
	Cancel()
}

// Clock is the capability the core depends on for current time and one-shot
// scheduling. The real implementation wraps time.AfterFunc; tests use Fake.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Handle
}

// Real is a Clock backed by the standard library.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Handle {
	t := time.AfterFunc(d, f)
	return realHandle{t}
}

type realHandle struct{ t *time.Timer }

func (h realHandle) Cancel() { h.t.Stop() }

// Fake is a manually-advanced Clock for tests. It never fires a callback on
// its own goroutine: callbacks run synchronously, in due-time order, inside
// Advance, on the calling goroutine. This keeps scenario tests deterministic
// without needing a real sleep.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	seq     int
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

type fakeTimer struct {
	due       time.Time
	f         func()
	cancelled bool
	seq       int
}

func (t *fakeTimer) Cancel() {
	t.cancelled = true
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{due: c.now.Add(d), f: f, seq: c.seq}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the fake clock forward by d, firing (in due-time, then
// registration, order) every timer whose deadline falls at or before the
// new time. A timer that is cancelled before its turn is skipped. Firing a
// timer may itself register new timers; those are eligible in the same
// Advance call if their deadline also falls within the window.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool {
			if c.pending[i].due.Equal(c.pending[j].due) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].due.Before(c.pending[j].due)
		})

		var next *fakeTimer
		for _, t := range c.pending {
			if t.cancelled {
				continue
			}
			if !t.due.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}

		c.now = next.due
		next.cancelled = true // consumed; a fired timer cannot fire again
		f := next.f
		c.mu.Unlock()

		f()
	}
}
