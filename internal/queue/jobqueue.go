package queue

import "fmt"

// NotFoundError is returned by JobQueue/PriorityJobQueue lookups for an
// unknown job id.
type NotFoundError struct {
	JobID uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("job %d not found", e.JobID) }

// JobQueue is a FIFO of jobs with O(n) id-keyed lookup. n is small (a
// handful of waiting/active jobs at a time), so a map index isn't worth the
// bookkeeping of keeping it in sync with removal by both id and FIFO order.
type JobQueue struct {
	q fifo
}

func (jq *JobQueue) Push(j *Job) { jq.q.push(j) }

func (jq *JobQueue) Peek() *Job { return jq.q.peek() }

func (jq *JobQueue) Pop() *Job { return jq.q.pop() }

func (jq *JobQueue) IsEmpty() bool { return jq.q.isEmpty() }

func (jq *JobQueue) Len() int { return jq.q.len() }

func (jq *JobQueue) Get(id uint64) *Job {
	for _, j := range jq.q.items {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (jq *JobQueue) Contains(id uint64) bool { return jq.Get(id) != nil }

// Remove drops and returns the job with id, or a *NotFoundError.
func (jq *JobQueue) Remove(id uint64) (*Job, error) {
	j := jq.q.remove(func(j *Job) bool { return j.ID == id })
	if j == nil {
		return nil, &NotFoundError{JobID: id}
	}
	return j, nil
}

func (jq *JobQueue) ListAll() []*Job { return jq.q.listAll() }

// PriorityJobQueue routes push by Job.HighPriority into one of two FIFO
// sub-queues; pop/peek always serve the high-priority queue first.
type PriorityJobQueue struct {
	high fifo
	low  fifo
}

func (pq *PriorityJobQueue) Push(j *Job) {
	if j.HighPriority {
		pq.high.push(j)
	} else {
		pq.low.push(j)
	}
}

func (pq *PriorityJobQueue) Peek() *Job {
	if j := pq.high.peek(); j != nil {
		return j
	}
	return pq.low.peek()
}

func (pq *PriorityJobQueue) Pop() *Job {
	if j := pq.high.pop(); j != nil {
		return j
	}
	return pq.low.pop()
}

func (pq *PriorityJobQueue) IsEmpty() bool { return pq.high.isEmpty() && pq.low.isEmpty() }

// Remove searches both sub-queues for id.
func (pq *PriorityJobQueue) Remove(id uint64) (*Job, error) {
	if j := pq.high.remove(func(j *Job) bool { return j.ID == id }); j != nil {
		return j, nil
	}
	if j := pq.low.remove(func(j *Job) bool { return j.ID == id }); j != nil {
		return j, nil
	}
	return nil, &NotFoundError{JobID: id}
}

func (pq *PriorityJobQueue) Get(id uint64) *Job {
	for _, j := range pq.high.items {
		if j.ID == id {
			return j
		}
	}
	for _, j := range pq.low.items {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// ListAll concatenates high-priority jobs before low-priority ones.
func (pq *PriorityJobQueue) ListAll() []*Job {
	out := pq.high.listAll()
	return append(out, pq.low.listAll()...)
}
