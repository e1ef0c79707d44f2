package queue

import (
	"log"
	"time"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/controller"
	"github.com/itskum47/sprinklerd/internal/observability"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// turnOnOffer is the subset of *controller.Controller the scheduler needs.
// Kept as an interface so tests can stub it without a real interceptor chain.
type turnOnOffer interface {
	IsValid(id sprinkler.ID) bool
	TurnOn(id sprinkler.ID) error
	TurnOff(id sprinkler.ID) error
}

// EventSink receives job lifecycle notifications for the /events websocket
// stream. The queue package depends only on this narrow interface, not on
// wsevents itself, so the scheduling core stays free of the websocket
// dependency; *wsevents.Hub satisfies it via PublishLifecycle.
type EventSink interface {
	PublishLifecycle(eventType string, jobID uint64, sprinklerID string, at time.Time)
}

// SprinklerJobQueue is the scheduler: it admits jobs, activates them against
// the controller under an ActivationPolicy, and reaps them on timer expiry
// or explicit removal. Every method is expected to run on the core's single
// dispatch loop (see internal/dispatch); it does no locking of its own.
type SprinklerJobQueue struct {
	clock      clock.Clock
	controller turnOnOffer
	policy     ActivationPolicy
	post       func(func()) // schedules a callback back onto the dispatch loop
	events     EventSink    // nil is valid: lifecycle notification is best-effort

	lastJobID uint64
	waiting   PriorityJobQueue
	active    JobQueue
}

// New returns a scheduler bound to controller and clock, using policy for
// admission. post must deliver its argument on the core's single dispatch
// loop (e.g. (*dispatch.Loop).Post) so that timer-driven completions never
// race with HTTP-originated calls. events may be nil if lifecycle
// notifications aren't needed (e.g. in tests).
func New(c clock.Clock, ctrl *controller.Controller, policy ActivationPolicy, post func(func()), events EventSink) *SprinklerJobQueue {
	if policy == nil {
		policy = DefaultActivationPolicy()
	}
	return &SprinklerJobQueue{clock: c, controller: ctrl, policy: policy, post: post, events: events}
}

// publish notifies the event sink, if one is configured.
func (q *SprinklerJobQueue) publish(eventType string, job *Job) {
	if q.events == nil {
		return
	}
	q.events.PublishLifecycle(eventType, job.ID, string(job.SprinklerID), q.clock.Now())
}

// Add submits a new job and immediately attempts to activate it (and any
// other runnable waiting jobs). Returns the assigned job id.
func (q *SprinklerJobQueue) Add(sprinklerID sprinkler.ID, durationSeconds float64, highPriority bool) (uint64, error) {
	if !q.controller.IsValid(sprinklerID) {
		observability.JobsRejected.WithLabelValues("unknown_sprinkler").Inc()
		return 0, &controller.UnknownSprinklerError{SprinklerID: sprinklerID}
	}
	if err := validateDuration(durationSeconds); err != nil {
		observability.JobsRejected.WithLabelValues("invalid_duration").Inc()
		return 0, err
	}

	q.lastJobID++
	job := &Job{
		ID:              q.lastJobID,
		SprinklerID:     sprinklerID,
		DurationSeconds: durationSeconds,
		HighPriority:    highPriority,
		Status:          StatusWaiting,
	}
	q.waiting.Push(job)
	priorityLabel := "low"
	if highPriority {
		priorityLabel = "high"
	}
	observability.JobsSubmitted.WithLabelValues(priorityLabel).Inc()
	q.attemptNext()
	return job.ID, nil
}

func (q *SprinklerJobQueue) updateGauges() {
	observability.ActiveJobs.Set(float64(q.active.Len()))
	observability.WaitingJobs.Set(float64(q.waiting.high.len() + q.waiting.low.len()))
}

// attemptNext activates as many waiting jobs as the policy allows. It is
// idempotent and safe to call redundantly; every event that could free an
// active slot calls it.
func (q *SprinklerJobQueue) attemptNext() {
	defer q.updateGauges()
	for {
		job := q.waiting.Peek()
		if job == nil {
			return
		}
		if !q.policy.IsRunnable(job, q.waiting.ListAll(), q.active.ListAll()) {
			return
		}
		q.waiting.Pop()

		if err := q.controller.TurnOn(job.SprinklerID); err != nil {
			// A chain rejection drops the job; any other error is a
			// programming bug in the controller wiring, not something
			// this loop can recover from.
			if !isSprinklerError(err) {
				panic(err)
			}
			log.Printf("sprinklerd: turn_on rejected for job %d (%s): %v", job.ID, job.SprinklerID, err)
			job.Status = StatusCancelled
			job.StopTime = q.clock.Now()
			q.publish("job_cancelled", job)
			continue
		}

		now := q.clock.Now()
		job.StartTime = now
		job.Status = StatusActive
		job.timer = q.scheduleFinish(job)
		q.active.Push(job)
		q.publish("job_activated", job)
	}
}

func (q *SprinklerJobQueue) scheduleFinish(job *Job) clock.Handle {
	d := time.Duration(job.DurationSeconds * float64(time.Second))
	return q.clock.AfterFunc(d, func() {
		q.post(func() { q.onFinished(job) })
	})
}

// onFinished runs when a job's duration timer fires. It is a no-op if the
// job already reached a terminal state by another path (explicit removal
// racing the same expiry).
func (q *SprinklerJobQueue) onFinished(job *Job) {
	if job.Status != StatusActive {
		return
	}
	q.removeFromActive(job, StatusFinished)
	q.attemptNext()
}

// removeFromActive pops job out of the active queue, cancels its timer,
// marks it with the given terminal status, and turns the sprinkler off.
func (q *SprinklerJobQueue) removeFromActive(job *Job, status Status) {
	q.active.Remove(job.ID)
	if job.timer != nil {
		job.timer.Cancel()
		job.timer = nil
	}
	job.Status = status
	job.StopTime = q.clock.Now()

	if err := q.controller.TurnOff(job.SprinklerID); err != nil {
		log.Printf("sprinklerd: turn_off failed for job %d (%s): %v", job.ID, job.SprinklerID, err)
	}
	eventType := "job_finished"
	if status == StatusCancelled {
		eventType = "job_cancelled"
	}
	q.publish(eventType, job)
}

// SetDuration updates a job's requested duration. For a waiting job this
// only changes the stored value; for an active job it re-arms (or, if the
// new duration has already elapsed, immediately ends) the running timer.
func (q *SprinklerJobQueue) SetDuration(jobID uint64, newDuration float64) error {
	if err := validateDuration(newDuration); err != nil {
		return err
	}

	if job := q.waiting.Get(jobID); job != nil {
		job.DurationSeconds = newDuration
		return nil
	}

	job := q.active.Get(jobID)
	if job == nil {
		return &NotFoundError{JobID: jobID}
	}

	job.DurationSeconds = newDuration
	remaining := job.StartTime.Add(time.Duration(newDuration * float64(time.Second))).Sub(q.clock.Now())
	if job.timer != nil {
		job.timer.Cancel()
	}
	if remaining <= 0 {
		job.timer = nil
		q.removeFromActive(job, StatusCancelled)
		q.attemptNext()
		return nil
	}
	job.timer = q.clock.AfterFunc(remaining, func() {
		q.post(func() { q.onFinished(job) })
	})
	return nil
}

// RemoveWaitingJob cancels a job that has not yet become active. It never
// touches hardware.
func (q *SprinklerJobQueue) RemoveWaitingJob(jobID uint64) error {
	job, err := q.waiting.Remove(jobID)
	if err != nil {
		return err
	}
	job.Status = StatusCancelled
	job.StopTime = q.clock.Now()
	q.publish("job_cancelled", job)
	q.updateGauges()
	return nil
}

// RemoveActiveJob cancels a running job: its timer is cancelled, the
// sprinkler is turned off, and the next waiting job (if any) is activated.
func (q *SprinklerJobQueue) RemoveActiveJob(jobID uint64) error {
	job := q.active.Get(jobID)
	if job == nil {
		return &NotFoundError{JobID: jobID}
	}
	q.removeFromActive(job, StatusCancelled)
	q.attemptNext()
	return nil
}

// Remove cancels a job wherever it currently sits, waiting or active.
func (q *SprinklerJobQueue) Remove(jobID uint64) error {
	if q.waiting.Get(jobID) != nil {
		return q.RemoveWaitingJob(jobID)
	}
	return q.RemoveActiveJob(jobID)
}

func (q *SprinklerJobQueue) ListWaitingJobs() []Snapshot { return q.snapshotAll(q.waiting.ListAll()) }

func (q *SprinklerJobQueue) ListActiveJobs() []Snapshot { return q.snapshotAll(q.active.ListAll()) }

// ListJobs returns active jobs first, then waiting jobs.
func (q *SprinklerJobQueue) ListJobs() []Snapshot {
	out := q.snapshotAll(q.active.ListAll())
	return append(out, q.snapshotAll(q.waiting.ListAll())...)
}

func (q *SprinklerJobQueue) IsJobActive(jobID uint64) bool { return q.active.Contains(jobID) }

func (q *SprinklerJobQueue) IsJobWaiting(jobID uint64) bool { return q.waiting.Get(jobID) != nil }

func (q *SprinklerJobQueue) GetWaitingJob(jobID uint64) (Snapshot, bool) {
	j := q.waiting.Get(jobID)
	if j == nil {
		return Snapshot{}, false
	}
	return j.snapshot(q.clock.Now()), true
}

func (q *SprinklerJobQueue) GetActiveJob(jobID uint64) (Snapshot, bool) {
	j := q.active.Get(jobID)
	if j == nil {
		return Snapshot{}, false
	}
	return j.snapshot(q.clock.Now()), true
}

// JobForSprinkler returns the active or waiting job currently bound to a
// sprinkler, if any — used by the /courts endpoint to decide whether to
// update an existing job or submit a new one.
func (q *SprinklerJobQueue) JobForSprinkler(id sprinkler.ID) *Job {
	if j := q.activeJobForSprinkler(id); j != nil {
		return j
	}
	for _, j := range q.waiting.ListAll() {
		if j.SprinklerID == id {
			return j
		}
	}
	return nil
}

// activeJobForSprinkler finds the active job bound to id, if any.
func (q *SprinklerJobQueue) activeJobForSprinkler(id sprinkler.ID) *Job {
	for _, j := range q.active.ListAll() {
		if j.SprinklerID == id {
			return j
		}
	}
	return nil
}

// CancelActiveJobForSprinkler marks the active job bound to id as cancelled
// without calling controller.TurnOff itself. It exists for the runtime
// budget's force-off path: the force-off callback wired in cmd/sprinklerd
// has already turned the sprinkler off through controller.TurnOff (which
// also updates the budget tracker), so the queue only needs to reconcile its
// own bookkeeping — the
// job's timer, active-set membership, and terminal status — and then see
// whether a waiting job can take the freed slot. A no-op if no job is
// currently active for id.
func (q *SprinklerJobQueue) CancelActiveJobForSprinkler(id sprinkler.ID) {
	job := q.activeJobForSprinkler(id)
	if job == nil {
		return
	}
	q.active.Remove(job.ID)
	if job.timer != nil {
		job.timer.Cancel()
		job.timer = nil
	}
	job.Status = StatusCancelled
	job.StopTime = q.clock.Now()
	q.publish("job_forced_off", job)
	q.attemptNext()
}

func (q *SprinklerJobQueue) snapshotAll(jobs []*Job) []Snapshot {
	now := q.clock.Now()
	out := make([]Snapshot, len(jobs))
	for i, j := range jobs {
		out[i] = j.snapshot(now)
	}
	return out
}

// sprinklerError is implemented by every rejection the interceptor chain can
// raise (concurrency, state, budget) — as opposed to a programming error.
type sprinklerError interface {
	error
	SprinklerErrorKind() string
}

func isSprinklerError(err error) bool {
	_, ok := err.(sprinklerError)
	return ok
}
