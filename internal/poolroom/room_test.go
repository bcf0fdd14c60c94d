package poolroom

import (
	"sync"
	"testing"
	"time"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rs/zerolog"
)

type testJob struct {
	pk    PriorityKey
	owner string
	label string
}

func (j *testJob) PriorityKey() PriorityKey { return j.pk }
func (j *testJob) OwnerAddress() string     { return j.owner }

// recorder is the owning actor for test jobs: it converts a granted token
// into Work and records job_done completions.
type recorder struct {
	addr            string
	workingRoomAddr string

	mu   sync.Mutex
	done []string
}

func (r *recorder) Address() string { return r.addr }

func (r *recorder) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindTokenToWorkingRoom:
		job := args[0].(WaitingJob)
		token := args[1].(Token)
		tj := job.(*testJob)
		work := Work{Job: job, Fn: func() (any, error) {
			time.Sleep(5 * time.Millisecond)
			return tj.label, nil
		}}
		return []actor.Message{{
			To:   r.workingRoomAddr,
			Kind: KindLaunchJobWithToken,
			Args: []any{work, token},
		}}
	case KindJobDone:
		tj := args[0].(*testJob)
		r.mu.Lock()
		r.done = append(r.done, tj.label)
		r.mu.Unlock()
		return nil
	case "die":
		return nil
	}
	return nil
}

func (r *recorder) results() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.done))
	copy(out, r.done)
	return out
}

func TestWaitingRoomAdmitsWithinPoolCapacity(t *testing.T) {
	sched := actor.New(zerolog.Nop())
	pool := NewThreadPool(1)
	defer pool.Close()

	rec := &recorder{addr: "/owner", workingRoomAddr: "/working"}
	waiting := NewWaitingRoom("/waiting", pool, sched)
	working := NewWorkingRoom("/working", "/waiting", pool, sched)
	sched.Register(rec)
	sched.Register(waiting)
	sched.Register(working)

	go sched.Run()
	defer sched.Close()

	jobs := []*testJob{
		{pk: PriorityKey{RasterUID: "r", QueryCreationIdx: 1, ProdIdx: 0}, owner: "/owner", label: "a"},
		{pk: PriorityKey{RasterUID: "r", QueryCreationIdx: 2, ProdIdx: 0}, owner: "/owner", label: "b"},
		{pk: PriorityKey{RasterUID: "r", QueryCreationIdx: 3, ProdIdx: 0}, owner: "/owner", label: "c"},
	}
	for _, j := range jobs {
		sched.Send(actor.Message{To: "/waiting", Kind: KindScheduleJob, Args: []any{WaitingJob(j)}})
	}

	deadline := time.After(time.Second)
	for {
		if len(rec.results()) == len(jobs) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %v", rec.results())
		case <-time.After(time.Millisecond):
		}
	}

	got := rec.results()
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected priority order a,b,c; got %v", got)
	}
	if waiting.WaitingDepth() != 0 {
		t.Fatalf("expected empty waiting queue, got depth %d", waiting.WaitingDepth())
	}
}

// zeroCapacityPool never admits any job, so a scheduled job is guaranteed
// to still be sitting in the WaitingRoom's queue when unschedule_job runs.
type zeroCapacityPool struct{}

func (zeroCapacityPool) Submit(fn JobFunc) <-chan Result {
	panic("zeroCapacityPool should never run work")
}
func (zeroCapacityPool) Workers() int           { return 0 }
func (zeroCapacityPool) SameAddressSpace() bool { return true }
func (zeroCapacityPool) Close()                 {}

func TestUnscheduleJobRemovesBeforeAdmission(t *testing.T) {
	sched := actor.New(zerolog.Nop())
	pool := zeroCapacityPool{}

	rec := &recorder{addr: "/owner", workingRoomAddr: "/working"}
	waiting := NewWaitingRoom("/waiting", pool, sched)
	working := NewWorkingRoom("/working", "/waiting", pool, sched)
	sched.Register(rec)
	sched.Register(waiting)
	sched.Register(working)

	go sched.Run()
	defer sched.Close()

	job := &testJob{pk: PriorityKey{RasterUID: "r"}, owner: "/owner", label: "x"}
	sched.Send(actor.Message{To: "/waiting", Kind: KindScheduleJob, Args: []any{WaitingJob(job)}})
	sched.Send(actor.Message{To: "/waiting", Kind: KindUnscheduleJob, Args: []any{WaitingJob(job)}})

	time.Sleep(20 * time.Millisecond)
	if waiting.WaitingDepth() != 0 {
		t.Fatalf("expected job removed, depth %d", waiting.WaitingDepth())
	}
	if len(rec.results()) != 0 {
		t.Fatalf("expected no completions, got %v", rec.results())
	}
}
