package actors

import (
	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/metrics"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

const kindNoPoolWriteDone = "no_pool_write_done"

// Writer is the actor that persists one merged cache tile to the backend
// on the IO pool, then marks it ready in the shared cache.Store so
// CacheExtractor can release every subscriber waiting on it (spec.md
// §4.4, §4.7).
type Writer struct {
	r       *raster.Raster
	store   *cache.Store
	sched   *actor.Scheduler
	metrics *metrics.Registry

	waiting map[*writeJob]bool
	working map[*writeJob]bool
}

// NewWriter returns a Writer for r, persisting tile state through store.
// sched lets a no-pool write re-enter the mailbox from its own goroutine,
// the same asynchronous-completion pattern poolroom.WorkingRoom uses.
func NewWriter(r *raster.Raster, store *cache.Store, sched *actor.Scheduler) *Writer {
	return &Writer{r: r, store: store, sched: sched, waiting: map[*writeJob]bool{}, working: map[*writeJob]bool{}}
}

// SetMetrics wires a Registry this Writer reports tile build outcomes to.
// Optional: a nil Registry (the default) disables reporting.
func (a *Writer) SetMetrics(m *metrics.Registry) { a.metrics = m }

func (a *Writer) Address() string { return addr.Raster(a.r.UID, "Writer") }

func (a *Writer) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindWriteThisArray:
		cacheFp := args[0].(footprint.Footprint)
		arr := args[1].(*sample.Array)
		return a.receiveWriteThisArray(cacheFp, arr)

	case poolroom.KindTokenToWorkingRoom:
		job := args[0].(*writeJob)
		token := args[1].(poolroom.Token)
		delete(a.waiting, job)
		a.working[job] = true
		fn := func() (any, error) {
			return nil, a.r.Backend.Write(job.key, job.arr)
		}
		return []actor.Message{{
			To:   workingRoomAddr(a.r.IOPool),
			Kind: poolroom.KindLaunchJobWithToken,
			Args: []any{poolroom.Work{Job: job, Fn: fn}, token},
		}}

	case poolroom.KindJobDone:
		job := args[0].(*writeJob)
		var err error
		if args[2] != nil {
			err = args[2].(error)
		}
		delete(a.working, job)
		return a.finish(job.key, job.cacheFp, err)

	case kindNoPoolWriteDone:
		key := args[0].(rasterio.CacheKey)
		cacheFp := args[1].(footprint.Footprint)
		var err error
		if args[2] != nil {
			err = args[2].(error)
		}
		return a.finish(key, cacheFp, err)

	case KindCacheTileFailed:
		cacheFp := args[0].(footprint.Footprint)
		err := args[1].(error)
		idx := a.r.TileIndexFor(cacheFp)
		return a.finish(a.r.CacheKey(idx), cacheFp, err)

	case kindDie:
		var out []actor.Message
		for job := range a.waiting {
			out = append(out, actor.Message{To: waitingRoomAddr(a.r.IOPool), Kind: poolroom.KindUnscheduleJob, Args: []any{job}})
		}
		for job := range a.working {
			out = append(out, actor.Message{To: workingRoomAddr(a.r.IOPool), Kind: poolroom.KindCancelJob, Args: []any{job}})
		}
		a.waiting = map[*writeJob]bool{}
		a.working = map[*writeJob]bool{}
		return out
	}
	return nil
}

func (a *Writer) receiveWriteThisArray(cacheFp footprint.Footprint, arr *sample.Array) []actor.Message {
	idx := a.r.TileIndexFor(cacheFp)
	key := a.r.CacheKey(idx)

	if a.r.IOPool == nil {
		go func() {
			err := a.r.Backend.Write(key, arr)
			a.sched.Send(actor.Message{To: a.Address(), Kind: kindNoPoolWriteDone, Args: []any{key, cacheFp, err}})
		}()
		return nil
	}

	job := &writeJob{
		owner:   a.Address(),
		pk:      poolroom.PriorityKey{RasterUID: a.r.UID},
		key:     key,
		cacheFp: cacheFp,
		arr:     arr,
	}
	a.waiting[job] = true
	return []actor.Message{{To: waitingRoomAddr(a.r.IOPool), Kind: poolroom.KindScheduleJob, Args: []any{job}}}
}

// finish records the tile's new state and broadcasts cache_file_ready so
// CacheExtractor can release every subscriber parked on key (spec.md
// §4.7's at-most-one-build invariant: exactly one Writer completion per
// build, fanned out to all subscribers).
func (a *Writer) finish(key rasterio.CacheKey, cacheFp footprint.Footprint, err error) []actor.Message {
	ck := cache.Key{RasterUID: key.RasterUID, Index: key.TileIndex}
	if err != nil {
		a.store.MarkFailed(ck, err)
		if a.metrics != nil {
			a.metrics.TilesFailed.Inc()
		}
	} else {
		a.store.MarkReady(ck)
		if a.metrics != nil {
			a.metrics.TilesBuilt.Inc()
		}
	}
	return []actor.Message{{
		To:   addr.Raster(a.r.UID, "CacheExtractor"),
		Kind: KindCacheFileReady,
		Args: []any{cacheFp, err},
	}}
}
