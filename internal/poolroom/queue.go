package poolroom

import "container/heap"

// WaitingJob is a job parked in a WaitingRoom until pool capacity allows it
// to run. Concrete job types (one per actor kind: Reader, Resampler,
// Merger, Computer) carry their own payload alongside these two methods.
type WaitingJob interface {
	PriorityKey() PriorityKey
	OwnerAddress() string
}

// Work is the form a WaitingJob takes once WorkingRoom has a token for it:
// the job identity (for job_done routing and cancel_job lookups) plus the
// closure that actually runs on the pool.
type Work struct {
	Job WaitingJob
	Fn  JobFunc
}

// entry wraps a WaitingJob with the insertion sequence used to break ties
// between jobs that compare equal under PriorityKey.Less.
type entry struct {
	job WaitingJob
	seq uint64
}

// waitingQueue is a stable-ordered priority queue of WaitingJob, backed by
// container/heap. No pack library provides a generic ordered container with
// deterministic tie-breaking, so this follows the corpus's own idiom of a
// hand-rolled heap.Interface implementation (see DESIGN.md). The
// heap.Interface methods (Len/Less/Swap/Push/Pop) are implemented directly
// on waitingQueue; PushJob/PopJob/RemoveJob are the typed API callers use.
type waitingQueue struct {
	entries []entry
	nextSeq uint64
}

func newWaitingQueue() *waitingQueue {
	q := &waitingQueue{}
	heap.Init(q)
	return q
}

// PushJob adds job to the queue.
func (q *waitingQueue) PushJob(job WaitingJob) {
	heap.Push(q, entry{job: job, seq: q.nextSeq})
	q.nextSeq++
}

// PopJob removes and returns the highest-priority job, or nil if empty.
func (q *waitingQueue) PopJob() WaitingJob {
	if q.Len() == 0 {
		return nil
	}
	e := heap.Pop(q).(entry)
	return e.job
}

// RemoveJob deletes job from the queue if present, reporting whether it was
// found (used by unschedule_job / cancel_this_query).
func (q *waitingQueue) RemoveJob(job WaitingJob) bool {
	for i, e := range q.entries {
		if e.job == job {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}

// --- heap.Interface / sort.Interface ---

func (q *waitingQueue) Len() int { return len(q.entries) }

func (q *waitingQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	ak, bk := a.job.PriorityKey(), b.job.PriorityKey()
	if ak == bk {
		return a.seq < b.seq
	}
	return ak.Less(bk)
}

func (q *waitingQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *waitingQueue) Push(x any) { q.entries = append(q.entries, x.(entry)) }

func (q *waitingQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	q.entries = old[:n-1]
	return e
}
