package httpapi

import (
	"time"

	"github.com/itskum47/sprinklerd/internal/queue"
	"github.com/itskum47/sprinklerd/internal/sprinkler"
)

// JobDTO is the wire representation of a Job.
type JobDTO struct {
	JobID         uint64   `json:"job_id"`
	SprinklerID   string   `json:"sprinkler_id"`
	Duration      float64  `json:"duration"`
	HighPriority  bool     `json:"high_priority"`
	StartTime     *float64 `json:"start_time"`
	StopTime      *float64 `json:"stop_time"`
	RemainingTime *float64 `json:"remaining_time"`
	Status        string   `json:"status"`
}

func jobDTO(s queue.Snapshot) JobDTO {
	return JobDTO{
		JobID:         s.ID,
		SprinklerID:   s.SprinklerID,
		Duration:      s.DurationSeconds,
		HighPriority:  s.HighPriority,
		StartTime:     s.StartTime,
		StopTime:      s.StopTime,
		RemainingTime: s.RemainingTime,
		Status:        string(s.Status),
	}
}

func jobDTOs(snaps []queue.Snapshot) []JobDTO {
	out := make([]JobDTO, len(snaps))
	for i, s := range snaps {
		out[i] = jobDTO(s)
	}
	return out
}

// CourtDTO is the /courts surface: either the job currently bound to the
// court, or an explicit "inactive" marker when no job is running or queued.
type CourtDTO struct {
	JobID         uint64   `json:"job_id,omitempty"`
	SprinklerID   string   `json:"sprinkler_id"`
	Duration      float64  `json:"duration,omitempty"`
	HighPriority  bool     `json:"high_priority,omitempty"`
	StartTime     *float64 `json:"start_time,omitempty"`
	StopTime      *float64 `json:"stop_time,omitempty"`
	RemainingTime *float64 `json:"remaining_time,omitempty"`
	Status        string   `json:"status"`
}

func courtDTO(id sprinkler.ID, job *queue.Job, now time.Time) CourtDTO {
	if job == nil {
		return CourtDTO{SprinklerID: id, Status: "inactive"}
	}
	dto := CourtDTO{
		SprinklerID:  id,
		JobID:        job.ID,
		Duration:     job.DurationSeconds,
		HighPriority: job.HighPriority,
		Status:       string(job.Status),
	}
	if !job.StartTime.IsZero() {
		v := float64(job.StartTime.UnixNano()) / float64(time.Second)
		dto.StartTime = &v
	}
	if !job.StopTime.IsZero() {
		v := float64(job.StopTime.UnixNano()) / float64(time.Second)
		dto.StopTime = &v
	}
	if job.Status == queue.StatusActive {
		v := job.RemainingSeconds(now)
		dto.RemainingTime = &v
	}
	return dto
}

// submitJobRequest is the POST /jobs request body. POST /jobs/{id} and
// POST /courts/{id} decode updateDurationRequest.
type submitJobRequest struct {
	SprinklerID  string  `json:"sprinkler_id"`
	Duration     float64 `json:"duration"`
	HighPriority bool    `json:"high_priority"`
}

type updateDurationRequest struct {
	Duration     float64 `json:"duration"`
	HighPriority bool    `json:"high_priority"`
}

type jobIDResponse struct {
	JobID uint64 `json:"job_id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
