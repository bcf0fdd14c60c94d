package actors

import (
	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/metrics"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/rasterio"
)

// subscriber is one (qi, prod_idx) waiting on a cache tile, recorded so a
// single build's completion can be fanned out to every caller that joined
// it (spec.md §4.7's at-most-one-build invariant).
type subscriber struct {
	qi      *query.Query
	prodIdx int
	cacheFp footprint.Footprint
	key     rasterio.CacheKey
}

// CacheExtractor is the actor that serves cache tile reads to Producer,
// building a tile through Computer/Merger/Writer at most once per absent
// or failed tile and fanning the result out to every subscriber that
// joined while it was building (spec.md §4.7). A non-recipe raster's
// cache tiles are its source data: no build state machine applies, reads
// go straight to Reader.
type CacheExtractor struct {
	r       *raster.Raster
	store   *cache.Store
	metrics *metrics.Registry

	subscribers map[cache.Key][]subscriber
}

// NewCacheExtractor returns a CacheExtractor for r, tracking build state
// through store.
func NewCacheExtractor(r *raster.Raster, store *cache.Store) *CacheExtractor {
	return &CacheExtractor{r: r, store: store, subscribers: map[cache.Key][]subscriber{}}
}

// SetMetrics wires a Registry this CacheExtractor reports cache hit/miss
// counts to. Optional: a nil Registry (the default) disables reporting.
func (a *CacheExtractor) SetMetrics(m *metrics.Registry) { a.metrics = m }

func (a *CacheExtractor) Address() string { return addr.Raster(a.r.UID, "CacheExtractor") }

func (a *CacheExtractor) Receive(kind string, args []any) []actor.Message {
	switch kind {
	case KindSampleThoseCacheFilesToAnArray:
		qi := args[0].(*query.Query)
		prodIdx := args[1].(int)
		return a.receiveSampleThoseCacheFiles(qi, prodIdx)

	case KindCacheFileRead:
		// A read failure (args[4] non-nil) currently surfaces as a nil
		// array to Producer rather than propagating the error onward;
		// Producer/Resampler treat a missing sample the same as an
		// out-of-raster nodata fill (see Resampler's !share_area branch).
		qi := args[0].(*query.Query)
		prodIdx := args[1].(int)
		cacheFp := args[2].(footprint.Footprint)
		var arr any
		if args[4] == nil {
			arr = args[3]
		}
		return []actor.Message{{
			To:   addr.Raster(a.r.UID, "Producer"),
			Kind: KindSampledACacheFileToTheArray,
			Args: []any{qi, prodIdx, cacheFp, arr},
		}}

	case KindCacheFileReady:
		cacheFp := args[0].(footprint.Footprint)
		return a.onCacheFileReady(cacheFp)

	case "cancel_this_query":
		qi := args[0].(*query.Query)
		a.dropQuery(qi)
		return nil

	case kindDie:
		a.subscribers = map[cache.Key][]subscriber{}
		return nil
	}
	return nil
}

func (a *CacheExtractor) receiveSampleThoseCacheFiles(qi *query.Query, prodIdx int) []actor.Message {
	pi := qi.Prod[prodIdx]
	var out []actor.Message
	for _, cacheFp := range pi.CacheFps {
		idx := a.r.TileIndexFor(cacheFp)
		key := a.r.CacheKey(idx)

		if !a.r.IsRecipe() {
			out = append(out, a.issueRead(qi, prodIdx, cacheFp, key)...)
			continue
		}

		ck := cache.Key{RasterUID: key.RasterUID, Index: key.TileIndex}
		switch a.store.State(ck) {
		case cache.StateReady:
			if a.metrics != nil {
				a.metrics.CacheHits.Inc()
			}
			out = append(out, a.issueRead(qi, prodIdx, cacheFp, key)...)
		case cache.StateBuilding:
			a.subscribe(ck, qi, prodIdx, cacheFp, key)
		default: // absent, failed
			a.subscribe(ck, qi, prodIdx, cacheFp, key)
			if a.store.Subscribe(ck) {
				if a.metrics != nil {
					a.metrics.CacheMisses.Inc()
				}
				out = append(out, actor.Message{
					To: addr.Raster(a.r.UID, "Computer"), Kind: KindComputeThisCacheTile, Args: []any{cacheFp},
				})
			}
		}
	}
	return out
}

func (a *CacheExtractor) subscribe(ck cache.Key, qi *query.Query, prodIdx int, cacheFp footprint.Footprint, key rasterio.CacheKey) {
	a.subscribers[ck] = append(a.subscribers[ck], subscriber{qi: qi, prodIdx: prodIdx, cacheFp: cacheFp, key: key})
}

// issueRead serves qi/prodIdx's cache tile read, consulting store's hot
// in-memory front before falling back to Reader/the IO pool.
func (a *CacheExtractor) issueRead(qi *query.Query, prodIdx int, cacheFp footprint.Footprint, key rasterio.CacheKey) []actor.Message {
	ck := cache.Key{RasterUID: key.RasterUID, Index: key.TileIndex}
	if arr, ok := a.store.GetHot(ck); ok {
		return []actor.Message{{
			To:   addr.Raster(a.r.UID, "Producer"),
			Kind: KindSampledACacheFileToTheArray,
			Args: []any{qi, prodIdx, cacheFp, arr},
		}}
	}

	rows, cols := cacheFp.Shape()
	win := rasterio.Window{
		Rows: footprint.Slice{Start: 0, Stop: rows},
		Cols: footprint.Slice{Start: 0, Stop: cols},
	}
	return []actor.Message{{
		To:   addr.Raster(a.r.UID, "Reader"),
		Kind: "read_cache_file",
		Args: []any{qi, prodIdx, cacheFp, key, win},
	}}
}

// onCacheFileReady fans a finished build out to every subscriber that
// joined it, whether it succeeded or failed (spec.md §4.7's at-most-one
// -build invariant is observed exactly once either way). A failed build
// left no cache file on disk, so routing a failed subscriber through the
// normal Reader path ends in a failed read (no file to open), which
// KindCacheFileRead forwards to Producer as a nil array, without
// CacheExtractor needing its own error-propagation path.
func (a *CacheExtractor) onCacheFileReady(cacheFp footprint.Footprint) []actor.Message {
	idx := a.r.TileIndexFor(cacheFp)
	ck := cache.Key{RasterUID: a.r.UID, Index: idx}
	subs := a.subscribers[ck]
	delete(a.subscribers, ck)

	var out []actor.Message
	for _, s := range subs {
		out = append(out, a.issueRead(s.qi, s.prodIdx, s.cacheFp, s.key)...)
	}
	return out
}

func (a *CacheExtractor) dropQuery(qi *query.Query) {
	for ck, subs := range a.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if s.qi != qi {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(a.subscribers, ck)
		} else {
			a.subscribers[ck] = kept
		}
	}
}
