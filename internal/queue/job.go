// Package queue implements the priority-aware job scheduler: Job lifecycle,
// FIFO sub-queues, the activation policy, and SprinklerJobQueue, the piece
// that ties submission, activation, and timer-driven completion together.
package queue

import (
	"time"

	"github.com/itskum47/sprinklerd/internal/clock"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// Status is a Job's lifecycle state. finished and cancelled are terminal.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Job is a request to run one sprinkler for a bounded duration.
type Job struct {
	ID              uint64
	SprinklerID     sprinkler.ID
	DurationSeconds float64
	HighPriority    bool
	Status          Status
	StartTime       time.Time // zero until waiting -> active
	StopTime        time.Time // zero until a terminal transition

	timer clock.Handle // nil unless Status == StatusActive
}

// RemainingSeconds reports the time left on an active job as of now. It is
// only meaningful while Status == StatusActive.
func (j *Job) RemainingSeconds(now time.Time) float64 {
	if j.Status != StatusActive {
		return 0
	}
	deadline := j.StartTime.Add(time.Duration(j.DurationSeconds * float64(time.Second)))
	return deadline.Sub(now).Seconds()
}

// Snapshot is a deep, caller-safe copy of a Job for serialization or
// listing: mutating it never affects queue-owned state.
type Snapshot struct {
	ID              uint64
	SprinklerID     sprinkler.ID
	DurationSeconds float64
	HighPriority    bool
	Status          Status
	StartTime       *float64 // unix seconds, nil if unset
	StopTime        *float64
	RemainingTime   *float64
}

func (j *Job) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		ID:              j.ID,
		SprinklerID:     j.SprinklerID,
		DurationSeconds: j.DurationSeconds,
		HighPriority:    j.HighPriority,
		Status:          j.Status,
	}
	if !j.StartTime.IsZero() {
		v := float64(j.StartTime.UnixNano()) / float64(time.Second)
		s.StartTime = &v
	}
	if !j.StopTime.IsZero() {
		v := float64(j.StopTime.UnixNano()) / float64(time.Second)
		s.StopTime = &v
	}
	if j.Status == StatusActive {
		v := j.RemainingSeconds(now)
		s.RemainingTime = &v
	}
	return s
}
