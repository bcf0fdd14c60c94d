package actors

import (
	"fmt"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/sample"
)

// Merger is the actor that combines the arrays of one or more primitive
// footprints into a single cache tile (spec.md §4.5). Grounded on
// original_source `cached/merger.py`'s three-way branch on input count and
// pool presence.
type Merger struct {
	r *raster.Raster

	waiting map[*mergeJob]bool
	working map[*mergeJob]bool
}

// NewMerger returns a Merger for r.
func NewMerger(r *raster.Raster) *Merger {
	return &Merger{r: r, waiting: map[*mergeJob]bool{}, working: map[*mergeJob]bool{}}
}

func (a *Merger) Address() string { return addr.Raster(a.r.UID, "Merger") }

func (a *Merger) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindMergeTheseArrays:
		cacheFp := args[0].(footprint.Footprint)
		arrayPerFp := args[1].(map[footprint.Footprint]*sample.Array)
		return a.receiveMergeTheseArrays(cacheFp, arrayPerFp)

	case poolroom.KindTokenToWorkingRoom:
		job := args[0].(*mergeJob)
		token := args[1].(poolroom.Token)
		delete(a.waiting, job)
		a.working[job] = true
		fn := func() (any, error) { return a.merge(job.cacheFp, job.arrayPerFp) }
		return []actor.Message{{
			To:   workingRoomAddr(a.r.MergePool),
			Kind: poolroom.KindLaunchJobWithToken,
			Args: []any{poolroom.Work{Job: job, Fn: fn}, token},
		}}

	case poolroom.KindJobDone:
		job := args[0].(*mergeJob)
		delete(a.working, job)
		var arr *sample.Array
		if args[1] != nil {
			arr = args[1].(*sample.Array)
		}
		var err error
		if args[2] != nil {
			err = args[2].(error)
		}
		if err != nil {
			return a.fail(job.cacheFp, err)
		}
		return a.commit(job.cacheFp, arr)

	case kindDie:
		var out []actor.Message
		for job := range a.waiting {
			out = append(out, actor.Message{To: waitingRoomAddr(a.r.MergePool), Kind: poolroom.KindUnscheduleJob, Args: []any{job}})
		}
		for job := range a.working {
			out = append(out, actor.Message{To: workingRoomAddr(a.r.MergePool), Kind: poolroom.KindCancelJob, Args: []any{job}})
		}
		a.waiting = map[*mergeJob]bool{}
		a.working = map[*mergeJob]bool{}
		return out
	}
	return nil
}

func (a *Merger) receiveMergeTheseArrays(cacheFp footprint.Footprint, arrayPerFp map[footprint.Footprint]*sample.Array) []actor.Message {
	if len(arrayPerFp) == 1 {
		for fp, arr := range arrayPerFp {
			if !fp.Equal(cacheFp) {
				panic("merger: single input footprint must equal the cache tile footprint")
			}
			return a.commit(cacheFp, arr)
		}
	}

	if a.r.MergePool == nil {
		arr, err := a.merge(cacheFp, arrayPerFp)
		if err != nil {
			return a.fail(cacheFp, err)
		}
		return a.commit(cacheFp, arr)
	}

	job := &mergeJob{
		owner:      a.Address(),
		pk:         poolroom.PriorityKey{RasterUID: a.r.UID},
		cacheFp:    cacheFp,
		arrayPerFp: arrayPerFp,
	}
	a.waiting[job] = true
	return []actor.Message{{To: waitingRoomAddr(a.r.MergePool), Kind: poolroom.KindScheduleJob, Args: []any{job}}}
}

// merge applies the raster's MergeFunc, or fails if none is set: combining
// more than one primitive footprint into a tile has no built-in default
// (spec.md §4.5 "a recipe raster with multiple overlapping primitives must
// supply merge_arrays"). The result is normalized against cacheFp's shape
// and the raster's channel count per spec.md §4.5's strict rules.
func (a *Merger) merge(cacheFp footprint.Footprint, arrayPerFp map[footprint.Footprint]*sample.Array) (*sample.Array, error) {
	if a.r.Merge == nil {
		return nil, fmt.Errorf("rasterq: cache tile %v needs %d inputs merged but raster has no MergeFunc", cacheFp, len(arrayPerFp))
	}
	arr, err := a.r.Merge(cacheFp, arrayPerFp, nil)
	if err != nil {
		return nil, err
	}
	if err := a.checkShape(cacheFp, arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func (a *Merger) checkShape(cacheFp footprint.Footprint, arr *sample.Array) error {
	if arr == nil {
		return &query.ComputeContractError{Reason: "merge_arrays returned a nil array"}
	}
	rows, cols := cacheFp.Shape()
	if arr.Rows != rows || arr.Cols != cols {
		return &query.ComputeContractError{Reason: fmt.Sprintf("merge_arrays returned shape (%d,%d), want (%d,%d)", arr.Rows, arr.Cols, rows, cols)}
	}
	if arr.Bands != a.r.ChannelCount {
		return &query.ComputeContractError{Reason: fmt.Sprintf("merge_arrays returned %d bands, want %d", arr.Bands, a.r.ChannelCount)}
	}
	return nil
}

func (a *Merger) commit(cacheFp footprint.Footprint, arr *sample.Array) []actor.Message {
	return []actor.Message{{To: addr.Raster(a.r.UID, "Writer"), Kind: KindWriteThisArray, Args: []any{cacheFp, arr}}}
}

// fail routes a merge failure to Writer, which owns the cache tile's
// failed-state transition and subscriber fan-out (spec.md §4.5, §7 kind 2).
func (a *Merger) fail(cacheFp footprint.Footprint, err error) []actor.Message {
	return []actor.Message{{To: addr.Raster(a.r.UID, "Writer"), Kind: KindCacheTileFailed, Args: []any{cacheFp, err}}}
}
