// Package actors implements the raster-scoped pipeline actors (spec.md
// §4.3-§4.9): Reader, Writer, Merger, Computer, CacheExtractor and
// Resampler, each grounded on the matching original_source/buzzard
// _actors file and wired onto internal/poolroom's WaitingRoom/WorkingRoom
// pair and internal/cache's tile-state store. Producer (spec.md §4.9)
// lives in internal/query alongside the Query/ProdArray types it mutates.
package actors

import (
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

// Message kinds exchanged between the pipeline actors (spec.md §4.3-§4.8),
// named after the original_source handler methods they port.
const (
	KindSampleThoseCacheFilesToAnArray = "sample_those_cache_files_to_an_array"
	KindSampledACacheFileToTheArray    = "sampled_a_cache_file_to_the_array"
	KindCacheFileRead                  = "cache_file_read"
	KindCacheFileReady                 = "cache_file_ready"
	KindComputeThisCacheTile           = "compute_this_cache_tile"
	KindMergeTheseArrays               = "merge_those_arrays"
	KindWriteThisArray                 = "write_this_array"
	KindResampleAndAccumulate          = "resample_and_accumulate"

	// KindCacheTileFailed is sent by Computer or Merger straight to Writer
	// when a compute/merge hook fails or violates its output contract
	// (spec.md §4.5, §7 kind 2): Writer owns cache.Store's failed-state
	// transition and the subscriber fan-out, so both actors funnel through
	// it rather than touching the store directly.
	KindCacheTileFailed = "cache_tile_failed"

	kindDie = "die"
)

// readJob reads one cache tile window on the IO pool (spec.md §4.3).
type readJob struct {
	owner   string
	pk      poolroom.PriorityKey
	key     rasterio.CacheKey
	win     rasterio.Window
	qi      *query.Query
	prodIdx int
	cacheFp footprint.Footprint
}

func (j *readJob) PriorityKey() poolroom.PriorityKey { return j.pk }
func (j *readJob) OwnerAddress() string              { return j.owner }

// computeJob invokes a recipe raster's ComputeFunc for one cache tile on
// the computation pool (spec.md §4.6).
type computeJob struct {
	owner        string
	pk           poolroom.PriorityKey
	cacheFp      footprint.Footprint
	primitiveFps map[string]footprint.Footprint
	primitiveArr map[string]*sample.Array
}

func (j *computeJob) PriorityKey() poolroom.PriorityKey { return j.pk }
func (j *computeJob) OwnerAddress() string              { return j.owner }

const kindPrimitiveArrayReady = "primitive_array_ready"

// pendingCompute tracks one in-flight compute_this_cache_tile request
// (spec.md §4.6) while its primitive sub-queries are still outstanding.
type pendingCompute struct {
	cacheFp      footprint.Footprint
	primitiveFps map[string]footprint.Footprint
	arrays       map[string]*sample.Array
	missing      map[string]bool
}

// mergeJob combines several primitive-footprint arrays into one cache tile
// on the merge pool (spec.md §4.5).
type mergeJob struct {
	owner      string
	pk         poolroom.PriorityKey
	cacheFp    footprint.Footprint
	arrayPerFp map[footprint.Footprint]*sample.Array
}

func (j *mergeJob) PriorityKey() poolroom.PriorityKey { return j.pk }
func (j *mergeJob) OwnerAddress() string              { return j.owner }

// writeJob persists one cache tile to the backend on the IO pool
// (spec.md §4.4).
type writeJob struct {
	owner   string
	pk      poolroom.PriorityKey
	key     rasterio.CacheKey
	cacheFp footprint.Footprint
	arr     *sample.Array
}

func (j *writeJob) PriorityKey() poolroom.PriorityKey { return j.pk }
func (j *writeJob) OwnerAddress() string              { return j.owner }

// resampleJob performs one resample_and_accumulate step on the resample
// pool (spec.md §4.8), mirroring original_source resampler.py's Wait/Work.
type resampleJob struct {
	owner      string
	pk         poolroom.PriorityKey
	qi         *query.Query
	prodIdx    int
	sampleFp   footprint.Footprint
	resampleFp footprint.Footprint
	subArray   *sample.Array
}

func (j *resampleJob) PriorityKey() poolroom.PriorityKey { return j.pk }
func (j *resampleJob) OwnerAddress() string              { return j.owner }
