// Package raster implements the Raster descriptor (spec.md §3): the
// process-unique identity, dtype/channel/nodata metadata, pool references
// and cache-tile grid shared by both a cached raster and a recipe raster,
// plus the user compute/merge hook signatures a recipe wires in. Grounded
// in MeKo-Christian-WaterColorMap's internal/raster.Raster
// (dtype/channel/nodata/affine bundle) generalized with the pool
// references and primitive list spec.md §3 requires.
package raster

import (
	"fmt"

	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/poolroom"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

// ComputeFunc is the user-supplied hook for a recipe raster (spec.md §6):
// given an output footprint, the per-primitive converted footprints and
// their already-fetched arrays, and an opaque facade value, it returns an
// array of shape (fp.Shape(), ChannelCount) castable to DType.
type ComputeFunc func(fp footprint.Footprint, primitiveFps map[string]footprint.Footprint, primitiveArrays map[string]*sample.Array, facade any) (*sample.Array, error)

// MergeFunc is the user-supplied hook combining multiple sample arrays
// covering a cache tile into a single array of that tile's shape (spec.md
// §6). Optional: without one, actors.Merger commits a single input that
// already covers exactly the cache tile as is, and fails the tile when
// more than one input has to be combined.
type MergeFunc func(cacheFp footprint.Footprint, arrayPerFp map[footprint.Footprint]*sample.Array, facade any) (*sample.Array, error)

// ConvertFootprintFunc maps an output footprint on the recipe raster's grid
// to the corresponding footprint on one primitive raster's grid.
type ConvertFootprintFunc func(fp footprint.Footprint) footprint.Footprint

// Primitive is one input raster a recipe's ComputeFunc depends on.
type Primitive struct {
	Name             string
	Raster           *Raster
	ConvertFootprint ConvertFootprintFunc
}

// Raster is the process-unique descriptor for one raster, cached or
// recipe-backed (spec.md §3). Immutable after construction; per-tile
// mutable state (cache presence) lives in internal/cache, keyed by UID.
type Raster struct {
	UID          string
	DType        sample.DType
	ChannelCount int
	NoData       *float64

	IOPool          poolroom.Pool
	ResamplePool    poolroom.Pool
	ComputationPool poolroom.Pool
	MergePool       poolroom.Pool

	Footprint footprint.Footprint
	TileRows  int
	TileCols  int
	Backend   rasterio.Backend

	// Recipe-only. IsRecipe reports their presence.
	Compute    ComputeFunc
	Merge      MergeFunc
	Primitives []Primitive
}

// IsRecipe reports whether this raster is computed rather than read
// directly from a backend.
func (r *Raster) IsRecipe() bool { return r.Compute != nil }

// CacheTiles returns the deterministic cache-tile grid covering the
// raster's full footprint, in row-major index order.
func (r *Raster) CacheTiles() []footprint.Footprint {
	return r.Footprint.TileGrid(r.TileRows, r.TileCols)
}

// CacheKey returns the content-addressed key for cache tile index i.
func (r *Raster) CacheKey(index int) rasterio.CacheKey {
	return rasterio.CacheKey{RasterUID: r.UID, TileIndex: index}
}

// TileIndexFor finds the index of fp within CacheTiles, or -1 if fp is not
// one of this raster's cache tiles.
func (r *Raster) TileIndexFor(fp footprint.Footprint) int {
	for i, t := range r.CacheTiles() {
		if t.Equal(fp) {
			return i
		}
	}
	return -1
}

func (r *Raster) String() string {
	kind := "cached"
	if r.IsRecipe() {
		kind = "recipe"
	}
	return fmt.Sprintf("Raster(uid=%s kind=%s dtype=%s channels=%d)", r.UID, kind, r.DType, r.ChannelCount)
}
