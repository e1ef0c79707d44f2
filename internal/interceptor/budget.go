package interceptor

import (
	"time"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/observability"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// pruneWindow is the longest horizon any budget window can reference; a
// tracker's history never needs entries older than this.
const pruneWindow = 24 * time.Hour

// Window is one rolling-window runtime budget: at most Max of cumulative
// active time is allowed in any trailing Window-long interval.
type Window struct {
	Window time.Duration
	Max    time.Duration
}

// DefaultWindows returns the three budget tiers the original daemon ships
// with: 10 min/hour, 30 min/12h, 1h/24h.
func DefaultWindows() []Window {
	return []Window{
		{Window: time.Hour, Max: 10 * time.Minute},
		{Window: 12 * time.Hour, Max: 30 * time.Minute},
		{Window: 24 * time.Hour, Max: time.Hour},
	}
}

type historyEntry struct {
	endTime  time.Time
	duration time.Duration
}

// runtimeTracker holds the rolling-window history and, while active, the
// force-off timer for a single sprinkler.
type runtimeTracker struct {
	clock     clock.Clock
	windows   []Window
	forceOff  func()
	history   []historyEntry
	startTime time.Time // zero when not active
	timer     clock.Handle
}

func newRuntimeTracker(c clock.Clock, windows []Window, forceOff func()) *runtimeTracker {
	return &runtimeTracker{clock: c, windows: windows, forceOff: forceOff}
}

// start begins tracking an activation. It returns BudgetExceeded if any
// window's allowance is overdrawn (negative remaining); with exactly zero
// left it starts and arms the force-off timer to fire immediately.
func (t *runtimeTracker) start(sprinklerID string) error {
	t.cancelTimer()

	remaining := time.Duration(-1)
	for i, w := range t.windows {
		used := t.usedWithin(w.Window)
		left := w.Max - used
		if i == 0 || left < remaining {
			remaining = left
		}
	}

	if remaining < 0 {
		return errBudgetExceeded(sprinklerID)
	}

	t.startTime = t.clock.Now()
	t.timer = t.clock.AfterFunc(remaining, t.forceOff)
	return nil
}

// stop records a normal or forced turn-off and prunes stale history. It
// returns the duration of the just-ended run, or 0 if none was in progress.
func (t *runtimeTracker) stop() time.Duration {
	t.cancelTimer()
	now := t.clock.Now()
	var ran time.Duration
	if !t.startTime.IsZero() {
		ran = now.Sub(t.startTime)
		t.history = append(t.history, historyEntry{endTime: now, duration: ran})
		t.startTime = time.Time{}
	}
	t.prune(now)
	return ran
}

// cancel undoes a start that never completed turn_on (e.g. a lower
// interceptor or the driver rejected the call). No history is recorded.
func (t *runtimeTracker) cancel() {
	t.cancelTimer()
	t.startTime = time.Time{}
}

func (t *runtimeTracker) cancelTimer() {
	if t.timer != nil {
		t.timer.Cancel()
		t.timer = nil
	}
}

func (t *runtimeTracker) usedWithin(window time.Duration) time.Duration {
	cutoff := t.clock.Now().Add(-window)
	var total time.Duration
	for _, e := range t.history {
		if !e.endTime.Before(cutoff) {
			total += e.duration
		}
	}
	return total
}

func (t *runtimeTracker) prune(now time.Time) {
	cutoff := now.Add(-pruneWindow)
	kept := t.history[:0]
	for _, e := range t.history {
		if !e.endTime.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	t.history = kept
}

// BudgetInterceptor enforces the rolling-window runtime budgets. It is the
// outermost chain member because it is the only one that acts
// asynchronously (the force-off timer); wrapping the others lets it cancel
// that timer cleanly whenever they reject a call.
type BudgetInterceptor struct {
	next     Interceptor
	clock    clock.Clock
	windows  []Window
	forceOff func(sprinklerID string) // posts a controller.TurnOff onto the dispatch loop
	trackers map[sprinkler.Driver]*runtimeTracker
}

// NewBudgetInterceptor returns a budget enforcer. forceOff is called (by
// sprinkler id) from a timer when a tracker's allowance runs out; the
// caller is responsible for posting it onto the core's single dispatch
// loop — BudgetInterceptor never assumes it runs there itself.
func NewBudgetInterceptor(c clock.Clock, windows []Window, forceOff func(sprinklerID string)) *BudgetInterceptor {
	if windows == nil {
		windows = DefaultWindows()
	}
	return &BudgetInterceptor{
		clock:    c,
		windows:  windows,
		forceOff: forceOff,
		trackers: make(map[sprinkler.Driver]*runtimeTracker),
	}
}

func (b *BudgetInterceptor) setNext(n Interceptor) { b.next = n }

func (b *BudgetInterceptor) trackerFor(d sprinkler.Driver) *runtimeTracker {
	t, ok := b.trackers[d]
	if !ok {
		id := d.SprinklerID()
		t = newRuntimeTracker(b.clock, b.windows, func() { b.forceOff(id) })
		b.trackers[d] = t
	}
	return t
}

func (b *BudgetInterceptor) TurnOn(d sprinkler.Driver) error {
	t := b.trackerFor(d)
	if err := t.start(d.SprinklerID()); err != nil {
		return err
	}
	if err := b.next.TurnOn(d); err != nil {
		t.cancel()
		return err
	}
	return nil
}

func (b *BudgetInterceptor) TurnOff(d sprinkler.Driver) error {
	if err := b.next.TurnOff(d); err != nil {
		// State disagrees with the driver; operator intervention needed.
		// The tracker is left untouched rather than guessed at.
		return err
	}
	ran := b.trackerFor(d).stop()
	if ran > 0 {
		observability.SprinklerActiveSeconds.WithLabelValues(d.SprinklerID()).Add(ran.Seconds())
	}
	return nil
}
