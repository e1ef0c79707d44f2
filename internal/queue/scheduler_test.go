package queue

import (
	"testing"
	"time"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/interceptor"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// fakeController is a minimal turnOnOffer stub: no interceptor chain, just
// bookkeeping of on/off calls and an optional per-sprinkler rejection.
type fakeController struct {
	valid   map[sprinkler.ID]bool
	onCalls []sprinkler.ID
	offCall []sprinkler.ID
	reject  map[sprinkler.ID]error
}

func newFakeController(ids ...sprinkler.ID) *fakeController {
	valid := make(map[sprinkler.ID]bool)
	for _, id := range ids {
		valid[id] = true
	}
	return &fakeController{valid: valid, reject: make(map[sprinkler.ID]error)}
}

func (f *fakeController) IsValid(id sprinkler.ID) bool { return f.valid[id] }

func (f *fakeController) TurnOn(id sprinkler.ID) error {
	if err, ok := f.reject[id]; ok {
		return err
	}
	f.onCalls = append(f.onCalls, id)
	return nil
}

func (f *fakeController) TurnOff(id sprinkler.ID) error {
	f.offCall = append(f.offCall, id)
	return nil
}

// synchronousPost runs callbacks inline; the scheduler's own test suite
// does not need the real dispatch loop to verify scheduling logic, only
// that it posts through the given function rather than calling directly.
func synchronousPost(fn func()) { fn() }

func newTestQueue(fc *clock.Fake, ctrl turnOnOffer, policy ActivationPolicy) *SprinklerJobQueue {
	if policy == nil {
		policy = DefaultActivationPolicy()
	}
	q := &SprinklerJobQueue{clock: fc, controller: ctrl, policy: policy, post: synchronousPost}
	return q
}

func TestBasicRun(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("court1")
	q := newTestQueue(fc, ctrl, nil)

	id, err := q.Add("court1", 2, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(q.ListActiveJobs()) != 1 {
		t.Fatalf("expected job to activate immediately")
	}

	fc.Advance(2100 * time.Millisecond)

	if len(q.ListActiveJobs()) != 0 {
		t.Fatalf("expected job to have finished")
	}
	snap, ok := q.GetWaitingJob(id)
	if ok {
		t.Fatalf("finished job should not be waiting: %+v", snap)
	}
	if len(ctrl.offCall) != 1 || ctrl.offCall[0] != "court1" {
		t.Fatalf("expected exactly one turn_off, got %v", ctrl.offCall)
	}
}

func TestConcurrencyCapLeavesExcessWaiting(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("a", "b", "c")
	q := newTestQueue(fc, ctrl, nil)

	q.Add("a", 60, false)
	q.Add("b", 60, false)
	q.Add("c", 60, false)

	if len(q.ListActiveJobs()) != 1 {
		t.Fatalf("expected exactly 1 active job with max_low_priority=1, got %d", len(q.ListActiveJobs()))
	}
	if len(q.ListWaitingJobs()) != 2 {
		t.Fatalf("expected 2 waiting jobs, got %d", len(q.ListWaitingJobs()))
	}
}

func TestHighPriorityActivatesAlongsideLowPriority(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("a", "b", "c")
	q := newTestQueue(fc, ctrl, nil)

	q.Add("a", 60, false)
	q.Add("b", 60, false)
	q.Add("c", 60, true)

	if len(q.ListActiveJobs()) != 2 {
		t.Fatalf("expected 2 active jobs (1 low + 1 high), got %d", len(q.ListActiveJobs()))
	}
	if len(q.ListWaitingJobs()) != 1 {
		t.Fatalf("expected the second low-priority job to still be waiting, got %d", len(q.ListWaitingJobs()))
	}
}

func TestDurationUpdateRearmsTimer(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("court1")
	q := newTestQueue(fc, ctrl, nil)

	id, _ := q.Add("court1", 60, false)
	fc.Advance(10 * time.Second)

	if err := q.SetDuration(id, 15); err != nil {
		t.Fatalf("set duration: %v", err)
	}

	fc.Advance(4 * time.Second)
	if len(q.ListActiveJobs()) != 1 {
		t.Fatalf("job should still be active at t=14s")
	}
	fc.Advance(2 * time.Second)
	if len(q.ListActiveJobs()) != 0 {
		t.Fatalf("job should have finished by t=16s")
	}
}

func TestDurationReductionBelowElapsedCancelsImmediately(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("court1")
	q := newTestQueue(fc, ctrl, nil)

	id, _ := q.Add("court1", 60, false)
	fc.Advance(10 * time.Second)

	if err := q.SetDuration(id, 5); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if len(q.ListActiveJobs()) != 0 {
		t.Fatalf("expected job cancelled immediately when new duration already elapsed")
	}
	if len(ctrl.offCall) != 1 {
		t.Fatalf("expected exactly one turn_off, got %v", ctrl.offCall)
	}
}

func TestRemoveActiveJobCancelsRaceCleanly(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("court1")
	q := newTestQueue(fc, ctrl, nil)

	id, _ := q.Add("court1", 2, false)
	if err := q.RemoveActiveJob(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// The timer is still pending in the fake clock but cancelled; advancing
	// must not trigger a second turn_off.
	fc.Advance(3 * time.Second)

	if len(ctrl.offCall) != 1 {
		t.Fatalf("expected exactly one turn_off despite the race, got %v", ctrl.offCall)
	}
}

func TestTurnOnRejectionDropsJobAndContinues(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	ctrl := newFakeController("a", "b")
	ctrl.reject["a"] = &interceptor.Error{Kind: interceptor.KindConcurrencyExceeded, SprinklerID: "a", Message: "no room"}
	q := newTestQueue(fc, ctrl, nil)

	idA, _ := q.Add("a", 60, false)
	idB, _ := q.Add("b", 60, false)

	if q.IsJobActive(idA) {
		t.Fatalf("rejected job should not be active")
	}
	if !q.IsJobActive(idB) {
		t.Fatalf("second job should have activated despite the first's rejection")
	}
}
