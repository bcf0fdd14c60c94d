package actors

import (
	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

// Reader is the actor that reads one cache tile window from the backend
// file on the IO pool (spec.md §4.3), reporting the decoded array back to
// CacheExtractor. Grounded on the Wait/Work job shape shared by every
// pooled actor in original_source (resampler.py, merger.py). Every
// successful whole-tile read is also pushed into store's hot LRU front, so
// a later read of the same tile (CacheExtractor.issueRead) can skip the IO
// pool entirely.
type Reader struct {
	r     *raster.Raster
	store *cache.Store

	waiting map[*readJob]bool
	working map[*readJob]bool
}

// NewReader returns a Reader for r, populating store's hot cache front on
// every successful read.
func NewReader(r *raster.Raster, store *cache.Store) *Reader {
	return &Reader{r: r, store: store, waiting: map[*readJob]bool{}, working: map[*readJob]bool{}}
}

func (a *Reader) Address() string { return addr.Raster(a.r.UID, "Reader") }

func (a *Reader) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case "read_cache_file":
		qi := args[0].(*query.Query)
		prodIdx := args[1].(int)
		cacheFp := args[2].(footprint.Footprint)
		key := args[3].(rasterio.CacheKey)
		win := args[4].(rasterio.Window)
		return a.receiveReadCacheFile(qi, prodIdx, cacheFp, key, win)

	case poolroom.KindTokenToWorkingRoom:
		job := args[0].(*readJob)
		token := args[1].(poolroom.Token)
		delete(a.waiting, job)
		a.working[job] = true
		fn := func() (any, error) {
			return a.r.Backend.Read(job.key, job.win)
		}
		return []actor.Message{{
			To:   workingRoomAddr(a.r.IOPool),
			Kind: poolroom.KindLaunchJobWithToken,
			Args: []any{poolroom.Work{Job: job, Fn: fn}, token},
		}}

	case poolroom.KindJobDone:
		job := args[0].(*readJob)
		var arr any
		var err error
		if args[1] != nil {
			arr = args[1]
		}
		if args[2] != nil {
			err = args[2].(error)
		}
		delete(a.working, job)
		a.putHot(job.key, arr, err)
		return []actor.Message{{
			To:   addr.Raster(a.r.UID, "CacheExtractor"),
			Kind: KindCacheFileRead,
			Args: []any{job.qi, job.prodIdx, job.cacheFp, arr, err},
		}}

	case "cancel_this_query":
		qi := args[0].(*query.Query)
		return a.cancelQuery(qi)

	case kindDie:
		var out []actor.Message
		for job := range a.waiting {
			out = append(out, actor.Message{To: waitingRoomAddr(a.r.IOPool), Kind: poolroom.KindUnscheduleJob, Args: []any{job}})
		}
		for job := range a.working {
			out = append(out, actor.Message{To: workingRoomAddr(a.r.IOPool), Kind: poolroom.KindCancelJob, Args: []any{job}})
		}
		a.waiting = map[*readJob]bool{}
		a.working = map[*readJob]bool{}
		return out
	}
	return nil
}

func (a *Reader) receiveReadCacheFile(qi *query.Query, prodIdx int, cacheFp footprint.Footprint, key rasterio.CacheKey, win rasterio.Window) []actor.Message {
	if a.r.IOPool == nil {
		arr, err := a.r.Backend.Read(key, win)
		a.putHot(key, arr, err)
		return []actor.Message{{
			To:   addr.Raster(a.r.UID, "CacheExtractor"),
			Kind: KindCacheFileRead,
			Args: []any{qi, prodIdx, cacheFp, arr, err},
		}}
	}
	job := &readJob{
		owner:   a.Address(),
		pk:      poolroom.PriorityKey{RasterUID: a.r.UID, QueryCreationIdx: qi.CreationIdx, ProdIdx: prodIdx},
		key:     key,
		win:     win,
		qi:      qi,
		prodIdx: prodIdx,
		cacheFp: cacheFp,
	}
	a.waiting[job] = true
	return []actor.Message{{To: waitingRoomAddr(a.r.IOPool), Kind: poolroom.KindScheduleJob, Args: []any{job}}}
}

// putHot populates store's hot front after a successful whole-tile read.
// issueRead always requests the full tile window, so the cached array is
// always valid for any later read of the same key.
func (a *Reader) putHot(key rasterio.CacheKey, arr any, err error) {
	if a.store == nil || err != nil || arr == nil {
		return
	}
	sarr, ok := arr.(*sample.Array)
	if !ok {
		return
	}
	a.store.PutHot(cache.Key{RasterUID: key.RasterUID, Index: key.TileIndex}, sarr)
}

func (a *Reader) cancelQuery(qi *query.Query) []actor.Message {
	var out []actor.Message
	for job := range a.waiting {
		if job.qi == qi {
			out = append(out, actor.Message{To: waitingRoomAddr(a.r.IOPool), Kind: poolroom.KindUnscheduleJob, Args: []any{job}})
			delete(a.waiting, job)
		}
	}
	for job := range a.working {
		if job.qi == qi {
			out = append(out, actor.Message{To: workingRoomAddr(a.r.IOPool), Kind: poolroom.KindCancelJob, Args: []any{job}})
			delete(a.working, job)
		}
	}
	return out
}
