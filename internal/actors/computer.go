package actors

import (
	"fmt"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/resample"
	"github.com/rasterq/rasterq/internal/sample"
)

// Computer is the actor that invokes a recipe raster's ComputeFunc for one
// cache tile (spec.md §4.6). Primitive arrays are pre-gathered by issuing
// a one-off sub-query per primitive through that primitive raster's own
// QueriesHandler, as spec.md §4.6 describes, before the compute hook runs
// on the computation pool.
type Computer struct {
	r          *raster.Raster
	sched      *actor.Scheduler
	primitives []primitiveHandle

	pending map[footprint.Footprint]*pendingCompute
	waiting map[*computeJob]bool
	working map[*computeJob]bool
}

// primitiveHandle pairs one of r.Primitives with the live QueriesHandler of
// its backing raster, so Computer can call Start directly in-process.
type primitiveHandle struct {
	primitive raster.Primitive
	handler   *query.QueriesHandler
}

// NewComputer returns a Computer for r. handlers must align 1:1 with
// r.Primitives, naming each primitive's own QueriesHandler.
func NewComputer(r *raster.Raster, sched *actor.Scheduler, handlers []*query.QueriesHandler) *Computer {
	phs := make([]primitiveHandle, len(r.Primitives))
	for i, p := range r.Primitives {
		phs[i] = primitiveHandle{primitive: p, handler: handlers[i]}
	}
	return &Computer{
		r: r, sched: sched, primitives: phs,
		pending: map[footprint.Footprint]*pendingCompute{},
		waiting: map[*computeJob]bool{},
		working: map[*computeJob]bool{},
	}
}

func (a *Computer) Address() string { return addr.Raster(a.r.UID, "Computer") }

func (a *Computer) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindComputeThisCacheTile:
		cacheFp := args[0].(footprint.Footprint)
		return a.receiveComputeThisCacheTile(cacheFp)

	case kindPrimitiveArrayReady:
		cacheFp := args[0].(footprint.Footprint)
		name := args[1].(string)
		arr := args[2].(*sample.Array)
		return a.onPrimitiveArrayReady(cacheFp, name, arr)

	case poolroom.KindTokenToWorkingRoom:
		job := args[0].(*computeJob)
		token := args[1].(poolroom.Token)
		delete(a.waiting, job)
		a.working[job] = true
		fn := func() (any, error) { return a.r.Compute(job.cacheFp, job.primitiveFps, job.primitiveArr, nil) }
		return []actor.Message{{
			To:   workingRoomAddr(a.r.ComputationPool),
			Kind: poolroom.KindLaunchJobWithToken,
			Args: []any{poolroom.Work{Job: job, Fn: fn}, token},
		}}

	case poolroom.KindJobDone:
		job := args[0].(*computeJob)
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
		if err := a.checkShape(job.cacheFp, arr); err != nil {
			return a.fail(job.cacheFp, err)
		}
		return a.commit(job.cacheFp, arr)

	case kindDie:
		var out []actor.Message
		for job := range a.waiting {
			out = append(out, actor.Message{To: waitingRoomAddr(a.r.ComputationPool), Kind: poolroom.KindUnscheduleJob, Args: []any{job}})
		}
		for job := range a.working {
			out = append(out, actor.Message{To: workingRoomAddr(a.r.ComputationPool), Kind: poolroom.KindCancelJob, Args: []any{job}})
		}
		a.waiting = map[*computeJob]bool{}
		a.working = map[*computeJob]bool{}
		a.pending = map[footprint.Footprint]*pendingCompute{}
		return out
	}
	return nil
}

func (a *Computer) receiveComputeThisCacheTile(cacheFp footprint.Footprint) []actor.Message {
	pc := &pendingCompute{
		cacheFp:      cacheFp,
		primitiveFps: map[string]footprint.Footprint{},
		arrays:       map[string]*sample.Array{},
		missing:      map[string]bool{},
	}
	a.pending[cacheFp] = pc

	if len(a.primitives) == 0 {
		return a.launchCompute(pc)
	}

	var out []actor.Message
	for _, ph := range a.primitives {
		fp := ph.primitive.ConvertFootprint(cacheFp)
		pc.primitiveFps[ph.primitive.Name] = fp
		pc.missing[ph.primitive.Name] = true

		q := query.NewQuery(0, ph.primitive.Raster.Footprint, ph.primitive.Raster.CacheTiles(), []footprint.Footprint{fp},
			allBands(ph.primitive.Raster.ChannelCount), ph.primitive.Raster.DType, 0, resample.InterpolationNearest)
		ch, msgs := ph.handler.Start(q, 1)
		out = append(out, msgs...)

		name := ph.primitive.Name
		go func() {
			e, ok := <-ch
			if !ok {
				return
			}
			arr, _ := e.Array.(*sample.Array)
			a.sched.Send(actor.Message{To: a.Address(), Kind: kindPrimitiveArrayReady, Args: []any{cacheFp, name, arr}})
		}()
	}
	return out
}

func (a *Computer) onPrimitiveArrayReady(cacheFp footprint.Footprint, name string, arr *sample.Array) []actor.Message {
	pc, ok := a.pending[cacheFp]
	if !ok {
		return nil
	}
	pc.arrays[name] = arr
	delete(pc.missing, name)
	if len(pc.missing) > 0 {
		return nil
	}
	return a.launchCompute(pc)
}

func (a *Computer) launchCompute(pc *pendingCompute) []actor.Message {
	delete(a.pending, pc.cacheFp)

	if a.r.ComputationPool == nil {
		arr, err := a.r.Compute(pc.cacheFp, pc.primitiveFps, pc.arrays, nil)
		if err != nil {
			return a.fail(pc.cacheFp, err)
		}
		if err := a.checkShape(pc.cacheFp, arr); err != nil {
			return a.fail(pc.cacheFp, err)
		}
		return a.commit(pc.cacheFp, arr)
	}

	job := &computeJob{
		owner:        a.Address(),
		pk:           poolroom.PriorityKey{RasterUID: a.r.UID},
		cacheFp:      pc.cacheFp,
		primitiveFps: pc.primitiveFps,
		primitiveArr: pc.arrays,
	}
	a.waiting[job] = true
	return []actor.Message{{To: waitingRoomAddr(a.r.ComputationPool), Kind: poolroom.KindScheduleJob, Args: []any{job}}}
}

func (a *Computer) commit(cacheFp footprint.Footprint, arr *sample.Array) []actor.Message {
	return []actor.Message{{
		To:   addr.Raster(a.r.UID, "Merger"),
		Kind: KindMergeTheseArrays,
		Args: []any{cacheFp, map[footprint.Footprint]*sample.Array{cacheFp: arr}},
	}}
}

// fail routes a compute failure straight to Writer, which owns the cache
// tile's failed-state transition and subscriber fan-out (spec.md §4.6, §7
// kind 2).
func (a *Computer) fail(cacheFp footprint.Footprint, err error) []actor.Message {
	return []actor.Message{{To: addr.Raster(a.r.UID, "Writer"), Kind: KindCacheTileFailed, Args: []any{cacheFp, err}}}
}

// checkShape validates compute_array's output against the output
// contract spec.md §6 requires: shape (fp.Shape(), ChannelCount).
func (a *Computer) checkShape(cacheFp footprint.Footprint, arr *sample.Array) error {
	if arr == nil {
		return &query.ComputeContractError{Reason: "compute_array returned a nil array"}
	}
	rows, cols := cacheFp.Shape()
	if arr.Rows != rows || arr.Cols != cols {
		return &query.ComputeContractError{Reason: fmt.Sprintf("compute_array returned shape (%d,%d), want (%d,%d)", arr.Rows, arr.Cols, rows, cols)}
	}
	if arr.Bands != a.r.ChannelCount {
		return &query.ComputeContractError{Reason: fmt.Sprintf("compute_array returned %d bands, want %d", arr.Bands, a.r.ChannelCount)}
	}
	return nil
}

func allBands(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
