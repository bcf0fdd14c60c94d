// Package rasterio implements the cache-tile file backend consumed by the
// Reader and Writer actors: synchronous, pool-safe read/write/delete over a
// content-addressed directory. Grounded in the teacher's internal/cog.Reader
// (mmap + windowed read) and internal/pmtiles.Writer (temp-file + content
// hash, generalized from FNV to xxhash).
package rasterio

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/sample"
)

// CacheKey addresses one cache tile: a raster and a deterministic tile index
// within that raster's cache grid. Content-addressed per spec.md §5 ("the
// cache is process-wide; tiles are identified by (raster_uid, cache_fp)").
type CacheKey struct {
	RasterUID string
	TileIndex int
}

// Hash returns a stable 64-bit content-address for the key.
func (k CacheKey) Hash() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s/%d", k.RasterUID, k.TileIndex))
}

// Window selects the pixel sub-range of a cache tile that a read extracts.
// CacheExtractor always requests the whole tile; Producer cuts the part
// inside the production's sample_fp out of it.
type Window struct {
	Rows, Cols footprint.Slice
}

// Backend is the raster file backend consumed by the core (spec.md §6): the
// external collaborator that actually touches disk. driver_name/open_options
// /path/delete are lifted from original_source's ABackEmissary shape.
type Backend interface {
	// Read opens the cache file for key and extracts the sub-array covering
	// win. Synchronous; safe to call concurrently from pool workers.
	Read(key CacheKey, win Window) (*sample.Array, error)

	// Write persists arr as the full contents of the cache tile identified
	// by key.
	Write(key CacheKey, arr *sample.Array) error

	// Delete removes the cache file for key, if present.
	Delete(key CacheKey) error

	// DriverName identifies the storage format ("raw", "webp", ...).
	DriverName() string

	// OpenOptions returns the options this backend was opened with.
	OpenOptions() map[string]string

	// Path returns the backend's root directory.
	Path() string
}
