package poolroom

import "sync/atomic"

// JobFunc is a same-address-space unit of pool work: a closure over its
// argument capture, per spec.md §3 "Pool job". For a ProcessPool-backed
// job the closure's body is what crosses the process boundary: it
// marshals its capture and calls SubmitJob, so WorkingRoom never needs to
// know which kind of pool it is driving.
type JobFunc func() (any, error)

// Result is what a pool delivers for one submitted job.
type Result struct {
	Value any
	Err   error
}

// Pool is the worker-pool primitive consumed by WaitingRoom/WorkingRoom
// (spec.md §6): `submit`, worker count, and same/cross address-space kind.
// Submit is the uniform entry point WorkingRoom drives; SameAddressSpace
// tells a caller building the JobFunc whether in-place buffer mutation
// will be visible back in this process, mirroring the original
// `isinstance(pool, mp.ThreadPool)` check.
type Pool interface {
	// Submit runs fn on the pool and delivers its result asynchronously.
	Submit(fn JobFunc) <-chan Result
	// Workers returns the number of worker slots.
	Workers() int
	// SameAddressSpace reports whether submitted work runs in this
	// process (so in-place buffer mutation is visible to the caller).
	SameAddressSpace() bool
	// Close stops accepting new work and releases worker resources.
	Close()
}

// Token is a single-use permit granted by a WaitingRoom to run exactly one
// job on its pool.
type Token struct {
	id uint64
}

var nextTokenID uint64

// NewToken mints a fresh single-use token. Only WaitingRoom should call
// this, when granting pool capacity to a waiting job.
func NewToken() Token {
	return Token{id: atomic.AddUint64(&nextTokenID, 1)}
}
