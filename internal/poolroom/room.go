package poolroom

import (
	"sync"

	"github.com/rasterq/rasterq/internal/actor"
)

// WaitingRoom is the admission-control half of a PoolRoom pair (spec.md
// §4.2): a priority queue of Waiting jobs, granting tokens to its paired
// WorkingRoom's pool whenever capacity allows. One WaitingRoom/WorkingRoom
// pair exists per user-supplied pool.
type WaitingRoom struct {
	addr  string
	pool  Pool
	sched *actor.Scheduler

	mu          sync.Mutex
	queue       *waitingQueue
	outstanding int
}

// NewWaitingRoom returns a WaitingRoom at addr, admitting against pool's
// worker count. sched is used only so WorkingRoom's asynchronous
// token_released notifications can re-enter the mailbox; WaitingRoom never
// calls Send itself — admission grants are returned as Receive follow-ups.
func NewWaitingRoom(addr string, pool Pool, sched *actor.Scheduler) *WaitingRoom {
	return &WaitingRoom{
		addr:  addr,
		pool:  pool,
		sched: sched,
		queue: newWaitingQueue(),
	}
}

func (r *WaitingRoom) Address() string { return r.addr }

func (r *WaitingRoom) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindScheduleJob:
		job := args[0].(WaitingJob)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.queue.PushJob(job)
		return r.admitLocked()

	case KindUnscheduleJob:
		job := args[0].(WaitingJob)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.queue.RemoveJob(job)
		return nil

	case KindTokenReleased:
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.outstanding > 0 {
			r.outstanding--
		}
		return r.admitLocked()

	case "die":
		return nil
	}
	return nil
}

// admitLocked grants tokens to as many waiting jobs as current pool
// capacity allows. Caller must hold r.mu.
func (r *WaitingRoom) admitLocked() []actor.Message {
	var out []actor.Message
	for r.outstanding < r.pool.Workers() {
		job := r.queue.PopJob()
		if job == nil {
			break
		}
		token := NewToken()
		r.outstanding++
		out = append(out, actor.Message{
			To:   job.OwnerAddress(),
			Kind: KindTokenToWorkingRoom,
			Args: []any{job, token},
		})
	}
	return out
}

// WaitingDepth reports the number of jobs currently parked, for metrics.
func (r *WaitingRoom) WaitingDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// workingEntry tracks one token's in-flight job, and whether cancel_job
// marked it for discard before it completed.
type workingEntry struct {
	job       WaitingJob
	cancelled bool
}

// WorkingRoom is the execution half of a PoolRoom pair (spec.md §4.2): it
// submits granted work to the pool and posts job_done back to the owner on
// completion, discarding results for cancelled jobs.
type WorkingRoom struct {
	addr            string
	waitingRoomAddr string
	pool            Pool
	sched           *actor.Scheduler

	mu      sync.Mutex
	working map[Token]workingEntry
}

// NewWorkingRoom returns a WorkingRoom at addr, paired with the WaitingRoom
// at waitingRoomAddr (to which it reports token_released), running work on
// pool. sched delivers job_done/token_released asynchronously once a pool
// submission completes, since that happens outside the scheduler goroutine.
func NewWorkingRoom(addr, waitingRoomAddr string, pool Pool, sched *actor.Scheduler) *WorkingRoom {
	return &WorkingRoom{
		addr:            addr,
		waitingRoomAddr: waitingRoomAddr,
		pool:            pool,
		sched:           sched,
		working:         make(map[Token]workingEntry),
	}
}

func (r *WorkingRoom) Address() string { return r.addr }

func (r *WorkingRoom) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindLaunchJobWithToken:
		work := args[0].(Work)
		token := args[1].(Token)
		r.mu.Lock()
		r.working[token] = workingEntry{job: work.Job}
		r.mu.Unlock()
		go r.run(work, token)
		return nil

	case KindCancelJob:
		job := args[0].(WaitingJob)
		r.mu.Lock()
		for tok, e := range r.working {
			if e.job == job {
				e.cancelled = true
				r.working[tok] = e
			}
		}
		r.mu.Unlock()
		return nil

	case "die":
		return nil
	}
	return nil
}

// run submits work to the pool on a goroutine (Receive must never block)
// and re-enters the mailbox via Scheduler.Send once the pool completes.
func (r *WorkingRoom) run(work Work, token Token) {
	res := <-r.pool.Submit(work.Fn)

	r.mu.Lock()
	e, ok := r.working[token]
	delete(r.working, token)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.sched.Send(actor.Message{To: r.waitingRoomAddr, Kind: KindTokenReleased, Args: []any{token}})
	if e.cancelled {
		return
	}
	r.sched.Send(actor.Message{To: e.job.OwnerAddress(), Kind: KindJobDone, Args: []any{e.job, res.Value, res.Err}})
}

// WorkingCount reports the number of jobs currently executing, for metrics.
func (r *WorkingRoom) WorkingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.working)
}
