package poolroom

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// ProcessWorkerArg is the hidden argv[1] cmd/rasterserve checks for to
// short-circuit into RunProcessWorker instead of starting the scheduler —
// the re-exec entry point a ProcessPool job shells out to.
const ProcessWorkerArg = "__rasterq_process_worker__"

// ProcessFunc is a cross-process job body: it receives and returns
// gob-encoded payloads only, since no Go closure or live object can cross
// an address-space boundary. Registered ahead of time by name so the child
// process (which has none of the parent's in-memory state) can look it up.
type ProcessFunc func(payload []byte) ([]byte, error)

var (
	registryMu sync.Mutex
	registry   = map[string]ProcessFunc{}
)

// RegisterProcessFunc makes fn invocable by name inside a process-pool
// worker. Call during package init from whichever package owns the
// recipe/merge function it wraps.
func RegisterProcessFunc(name string, fn ProcessFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// ProcessJob is a serializable unit of cross-process work: the registered
// operation's name plus its gob-encoded input.
type ProcessJob struct {
	OpName  string
	Payload []byte
}

type processResponse struct {
	Payload []byte
	Err     string
}

// ProcessPool runs ProcessJob values in a fresh subprocess per job (a
// re-exec of the current binary with ProcessWorkerArg), copying arguments
// by value over stdin/stdout — the "copies arguments" contract of
// spec.md §6 and §9. Grounded in the corpus's various external-process
// worker/queue-runner patterns (other_examples: ehrlich-b-go-ublk queue
// runner) generalized from a persistent queue to one process per job,
// which keeps the failure/cancellation model simple: killing the process
// discards the job with no side effects, matching spec.md §5 cancellation.
type ProcessPool struct {
	workers int
	wg      sync.WaitGroup
}

// NewProcessPool returns a pool advertising `workers` worker slots.
func NewProcessPool(workers int) *ProcessPool {
	if workers <= 0 {
		workers = 1
	}
	return &ProcessPool{workers: workers}
}

func (p *ProcessPool) Workers() int           { return p.workers }
func (p *ProcessPool) SameAddressSpace() bool { return false }
func (p *ProcessPool) Close()                 { p.wg.Wait() }

// Submit runs fn (typically a closure that gob-encodes its capture and
// calls SubmitJob) on a goroutine in this process, satisfying the uniform
// poolroom.Pool interface WorkingRoom drives. The cross-process hop, if
// any, happens inside fn itself.
func (p *ProcessPool) Submit(fn JobFunc) <-chan Result {
	out := make(chan Result, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		v, err := fn()
		out <- Result{Value: v, Err: err}
		close(out)
	}()
	return out
}

// SubmitJob runs job in a child process and delivers its decoded result
// (the ProcessFunc's returned payload) on the returned channel.
func (p *ProcessPool) SubmitJob(job ProcessJob) <-chan Result {
	out := make(chan Result, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		payload, err := p.run(job)
		out <- Result{Value: payload, Err: err}
		close(out)
	}()
	return out
}

func (p *ProcessPool) run(job ProcessJob) ([]byte, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("poolroom: locating executable: %w", err)
	}

	cmd := exec.Command(exe, ProcessWorkerArg, job.OpName)
	var stdin bytes.Buffer
	if err := gob.NewEncoder(&stdin).Encode(job.Payload); err != nil {
		return nil, fmt.Errorf("poolroom: encoding job payload: %w", err)
	}
	cmd.Stdin = &stdin

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("poolroom: process worker %q failed: %w (stderr: %s)", job.OpName, err, stderr.String())
	}

	var resp processResponse
	if err := gob.NewDecoder(&stdout).Decode(&resp); err != nil {
		return nil, fmt.Errorf("poolroom: decoding process worker response: %w", err)
	}
	if resp.Err != "" {
		return nil, fmt.Errorf("poolroom: process worker %q: %s", job.OpName, resp.Err)
	}
	return resp.Payload, nil
}

// RunProcessWorker is the child-process entry point: it decodes a payload
// from stdin, looks up opName in the registry, runs it, and encodes the
// response to stdout. cmd/rasterserve calls this when invoked with
// ProcessWorkerArg instead of starting the scheduler.
func RunProcessWorker(opName string) error {
	fn, ok := registry[opName]
	if !ok {
		return fmt.Errorf("poolroom: no process func registered for %q", opName)
	}

	var payload []byte
	if err := gob.NewDecoder(os.Stdin).Decode(&payload); err != nil {
		return fmt.Errorf("poolroom: decoding job payload: %w", err)
	}

	result, runErr := fn(payload)
	resp := processResponse{Payload: result}
	if runErr != nil {
		resp.Err = runErr.Error()
	}
	return gob.NewEncoder(os.Stdout).Encode(resp)
}
