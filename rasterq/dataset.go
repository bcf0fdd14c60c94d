// Package rasterq is the dataset-level façade spec.md §1 names as an
// external collaborator and SPEC_FULL.md supplements with a concrete
// implementation: it gathers the scheduler, the shared cache store, the
// worker pools and one or more raster actor graphs into a single value
// exposing the public query surface of spec.md §6 (GetData, IterData,
// Close). Grounded in the teacher's cmd/geotiff2pmtiles main() wiring
// (open backend, build pipeline, run, close), lifted into a reusable
// package so cmd/rasterserve can be a thin CLI over it.
package rasterq

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/actors"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/metrics"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/resample"
	"github.com/rasterq/rasterq/internal/sample"
)

// Dataset is one process-wide scheduler, cache store and pool registry
// (spec.md §5 "pools are shared across rasters... the cache is
// process-wide"). Rasters are opened against it one at a time with
// OpenRaster; a recipe raster's primitives must already be open.
type Dataset struct {
	log     zerolog.Logger
	sched   *actor.Scheduler
	store   *cache.Store
	metrics *metrics.Registry
	stats   *query.Stats

	mu      sync.Mutex
	pools   map[poolroom.Pool]bool
	rasters map[string]*Raster
	closed  bool

	queryIdx uint64
}

// New returns a Dataset with its scheduler already running on its own
// goroutine. store is typically a fresh *cache.Store (see internal/cache);
// sharing one Store across multiple Datasets is not supported, since cache
// tile identity also assumes a single scheduler registry.
func New(log zerolog.Logger, store *cache.Store) *Dataset {
	sched := actor.New(log)
	d := &Dataset{
		log:     log.With().Str("component", "dataset").Logger(),
		sched:   sched,
		store:   store,
		pools:   map[poolroom.Pool]bool{},
		rasters: map[string]*Raster{},
	}
	go sched.Run()
	return d
}

// SetMetrics wires a Registry this Dataset and every raster it opens from
// here on report cache hit/miss and tile build/fail counts, and per-pool
// admission depth, to. Call before OpenRaster; a raster already open when
// this is called keeps reporting to whatever was wired when it was opened.
// Optional: a nil Registry (the default) disables reporting.
func (d *Dataset) SetMetrics(m *metrics.Registry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// Metrics returns the Registry wired with SetMetrics, or nil if none was set.
func (d *Dataset) Metrics() *metrics.Registry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metrics
}

// SetStats wires a query.Stats every raster opened from here on reports
// its emitted and failed production tiles to (spec.md §7 progress
// reporting on a long-running iter_data consumption). Call before
// OpenRaster. Optional: a nil Stats (the default) disables reporting.
func (d *Dataset) SetStats(s *query.Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = s
}

// Stats returns the Stats wired with SetStats, or nil if none was set.
func (d *Dataset) Stats() *query.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// PrimitiveConfig wires one already-open primitive raster into a recipe's
// compute input set (spec.md §4.6).
type PrimitiveConfig struct {
	Name             string
	Raster           *Raster
	ConvertFootprint raster.ConvertFootprintFunc
}

// RasterConfig describes one raster to open on a Dataset (spec.md §3
// "Raster"). Leave Compute nil for a cached raster backed directly by
// Backend; set it (with Primitives, for a non-trivial recipe) to make this
// a recipe raster instead.
type RasterConfig struct {
	UID          string
	DType        sample.DType
	ChannelCount int
	NoData       *float64

	Footprint          footprint.Footprint
	TileRows, TileCols int // default 256 each if zero
	Backend            rasterio.Backend

	IOPool          poolroom.Pool
	ResamplePool    poolroom.Pool
	ComputationPool poolroom.Pool
	MergePool       poolroom.Pool

	Compute    raster.ComputeFunc
	Merge      raster.MergeFunc
	Primitives []PrimitiveConfig

	// DstNoData is the value emitted for pixels outside share_area and for
	// the raster's own NoData value when it differs (spec.md §8 invariant
	// 2). Interpolation selects the resample kernel for queries at a
	// different grid (spec.md §4.8); defaults to nearest-neighbor.
	DstNoData     float64
	Interpolation resample.Interpolation
}

// OpenRaster registers one raster's full actor graph (Reader, Writer,
// Merger, Computer, CacheExtractor, Resampler, Producer, QueriesHandler)
// with d's scheduler, along with a WaitingRoom/WorkingRoom pair for any of
// its pools not already registered by an earlier OpenRaster call (spec.md
// §5: pools are shared, so the same *ThreadPool passed to two rasters gets
// exactly one PoolRoom pair).
func (d *Dataset) OpenRaster(cfg RasterConfig) (*Raster, error) {
	if cfg.UID == "" {
		return nil, &query.InvalidQueryError{Reason: "raster uid is empty"}
	}
	if cfg.Backend == nil {
		return nil, &query.InvalidQueryError{Reason: fmt.Sprintf("raster %q: backend is nil", cfg.UID)}
	}
	if cfg.ChannelCount <= 0 {
		return nil, &query.InvalidQueryError{Reason: fmt.Sprintf("raster %q: channel count must be positive", cfg.UID)}
	}

	d.mu.Lock()
	if _, exists := d.rasters[cfg.UID]; exists {
		d.mu.Unlock()
		return nil, fmt.Errorf("rasterq: raster %q is already open", cfg.UID)
	}
	d.mu.Unlock()

	tileRows, tileCols := cfg.TileRows, cfg.TileCols
	if tileRows <= 0 {
		tileRows = 256
	}
	if tileCols <= 0 {
		tileCols = 256
	}

	primitives := make([]raster.Primitive, len(cfg.Primitives))
	handlers := make([]*query.QueriesHandler, len(cfg.Primitives))
	for i, p := range cfg.Primitives {
		if p.Raster == nil {
			return nil, &query.InvalidQueryError{Reason: fmt.Sprintf("raster %q: primitive %q has no raster", cfg.UID, p.Name)}
		}
		primitives[i] = raster.Primitive{Name: p.Name, Raster: p.Raster.r, ConvertFootprint: p.ConvertFootprint}
		handlers[i] = p.Raster.handler
	}

	r := &raster.Raster{
		UID:             cfg.UID,
		DType:           cfg.DType,
		ChannelCount:    cfg.ChannelCount,
		NoData:          cfg.NoData,
		IOPool:          cfg.IOPool,
		ResamplePool:    cfg.ResamplePool,
		ComputationPool: cfg.ComputationPool,
		MergePool:       cfg.MergePool,
		Footprint:       cfg.Footprint,
		TileRows:        tileRows,
		TileCols:        tileCols,
		Backend:         cfg.Backend,
		Compute:         cfg.Compute,
		Merge:           cfg.Merge,
		Primitives:      primitives,
	}

	d.ensurePoolRooms(cfg.IOPool)
	d.ensurePoolRooms(cfg.ResamplePool)
	d.ensurePoolRooms(cfg.ComputationPool)
	d.ensurePoolRooms(cfg.MergePool)

	d.mu.Lock()
	reg := d.metrics
	st := d.stats
	d.mu.Unlock()

	writer := actors.NewWriter(r, d.store, d.sched)
	extractor := actors.NewCacheExtractor(r, d.store)
	if reg != nil {
		writer.SetMetrics(reg)
		extractor.SetMetrics(reg)
	}

	d.sched.Register(actors.NewReader(r, d.store))
	d.sched.Register(writer)
	d.sched.Register(actors.NewMerger(r))
	d.sched.Register(extractor)
	d.sched.Register(actors.NewResampler(r, d.sched))
	d.sched.Register(actors.NewComputer(r, d.sched, handlers))
	d.sched.Register(query.NewProducer(r.UID))

	handler := query.NewQueriesHandler(r.UID)
	if st != nil {
		handler.SetStats(st)
	}
	d.sched.Register(handler)

	rh := &Raster{
		d:             d,
		r:             r,
		handler:       handler,
		dstNoData:     cfg.DstNoData,
		interpolation: cfg.Interpolation,
	}

	d.mu.Lock()
	d.rasters[r.UID] = rh
	d.mu.Unlock()
	return rh, nil
}

// ensurePoolRooms registers a WaitingRoom/WorkingRoom pair for p the first
// time any raster references it. Address scheme mirrors internal/actors'
// own poolID/waitingRoomAddr/workingRoomAddr — duplicated rather than
// imported, the same convention internal/addr documents for cross-package
// actor addressing.
func (d *Dataset) ensurePoolRooms(p poolroom.Pool) {
	if p == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pools[p] {
		return
	}
	d.pools[p] = true

	id := fmt.Sprintf("%p", p)
	wr := poolroom.NewWaitingRoom(addr.Pool(id, "WaitingRoom"), p, d.sched)
	wk := poolroom.NewWorkingRoom(addr.Pool(id, "WorkingRoom"), wr.Address(), p, d.sched)
	d.sched.Register(wr)
	d.sched.Register(wk)

	if d.metrics != nil {
		d.metrics.ObservePool(id, wr.WaitingDepth, wk.WorkingCount)
	}
}

// Close broadcasts die to every actor, joins the scheduler goroutine, joins
// every registered pool and closes the cache store (spec.md §6 "close()
// idempotent teardown"). Safe to call more than once.
func (d *Dataset) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pools := make([]poolroom.Pool, 0, len(d.pools))
	for p := range d.pools {
		pools = append(pools, p)
	}
	d.mu.Unlock()

	d.sched.Close()
	for _, p := range pools {
		p.Close()
	}
	return d.store.Close()
}

// Raster is a handle to one open raster's query surface (spec.md §6
// "get_data" / "iter_data"): GetData for a single blocking request,
// IterData for a lazy bounded stream over several footprints.
type Raster struct {
	d       *Dataset
	r       *raster.Raster
	handler *query.QueriesHandler

	dstNoData     float64
	interpolation resample.Interpolation
}

// UID returns this raster's process-unique identity.
func (rh *Raster) UID() string { return rh.r.UID }

// GetData is a blocking single-footprint query (spec.md §6 "get_data(fp,
// band=-1)"). band selects one channel; -1 requests every channel in
// ascending order.
func (rh *Raster) GetData(fp footprint.Footprint, band int) (*sample.Array, error) {
	if fp.IsZero() {
		return nil, &query.InvalidQueryError{Reason: "empty footprint"}
	}
	bandIDs, err := rh.resolveBands(band)
	if err != nil {
		return nil, err
	}

	q := rh.plan([]footprint.Footprint{fp}, bandIDs)
	ch, msgs := rh.handler.Start(q, 1)
	rh.send(msgs)

	e, ok := <-ch
	if !ok {
		return nil, fmt.Errorf("rasterq: raster %q: query closed before producing a result", rh.r.UID)
	}
	if e.Err != nil {
		return nil, e.Err
	}
	arr, _ := e.Array.(*sample.Array)
	return arr, nil
}

// Iterator is a lazy, finite, non-restartable stream of production tiles in
// request order (spec.md §6 "iter_data"), bounded by the max_queue_size
// passed to IterData.
type Iterator struct {
	rh *Raster
	q  *query.Query
	ch <-chan query.Emission
}

// IterData starts a query over fps, yielding arrays through the returned
// Iterator in request order (spec.md §6, §4.10). maxQueueSize bounds how
// many production tiles may be in flight or buffered at once; values <= 0
// default to 1.
func (rh *Raster) IterData(fps []footprint.Footprint, band int, maxQueueSize int) (*Iterator, error) {
	if len(fps) == 0 {
		return nil, &query.InvalidQueryError{Reason: "empty footprint list"}
	}
	bandIDs, err := rh.resolveBands(band)
	if err != nil {
		return nil, err
	}

	q := rh.plan(fps, bandIDs)
	ch, msgs := rh.handler.Start(q, maxQueueSize)
	rh.send(msgs)
	return &Iterator{rh: rh, q: q, ch: ch}, nil
}

// Next blocks for the next production tile. ok is false once every
// footprint has been emitted (or the query was cancelled) and no error
// occurred; err is non-nil exactly once, on the failure that terminates
// the stream (spec.md §7 "iter_data yields successes up to the first
// failure, then raises the typed error and stops").
func (it *Iterator) Next() (arr *sample.Array, ok bool, err error) {
	e, open := <-it.ch
	if !open {
		return nil, false, nil
	}
	it.rh.send(it.rh.handler.Consumed(it.q))
	if e.Err != nil {
		it.rh.send(it.rh.handler.Cancel(it.q))
		done := make(chan query.Emission)
		close(done)
		it.ch = done
		return nil, false, e.Err
	}
	arr, _ = e.Array.(*sample.Array)
	return arr, true, nil
}

// Cancel stops this iterator's query: every raster-scoped actor drops its
// in-flight state for it and the channel Next reads from is closed.
func (it *Iterator) Cancel() {
	it.rh.send(it.rh.handler.Cancel(it.q))
}

func (rh *Raster) resolveBands(band int) ([]int, error) {
	if band == -1 {
		ids := make([]int, rh.r.ChannelCount)
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}
	if band < 0 || band >= rh.r.ChannelCount {
		return nil, &query.InvalidQueryError{Reason: fmt.Sprintf("band %d out of range [0,%d)", band, rh.r.ChannelCount)}
	}
	return []int{band}, nil
}

func (rh *Raster) plan(fps []footprint.Footprint, bandIDs []int) *query.Query {
	idx := atomic.AddUint64(&rh.d.queryIdx, 1)
	return query.NewQuery(idx, rh.r.Footprint, rh.r.CacheTiles(), fps, bandIDs, rh.r.DType, rh.dstNoData, rh.interpolation)
}

func (rh *Raster) send(msgs []actor.Message) {
	for _, m := range msgs {
		rh.d.sched.Send(m)
	}
}
