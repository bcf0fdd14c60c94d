package actors

import (
	"errors"
	"testing"

	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/rasterio"
	"github.com/rasterq/rasterq/internal/sample"
)

// fakeBackend is a minimal rasterio.Backend for Reader tests: Read always
// returns a fixed array (or a fixed error), ignoring key/win.
type fakeBackend struct {
	arr *sample.Array
	err error
}

func (b *fakeBackend) Read(rasterio.CacheKey, rasterio.Window) (*sample.Array, error) {
	return b.arr, b.err
}
func (b *fakeBackend) Write(rasterio.CacheKey, *sample.Array) error { return nil }
func (b *fakeBackend) Delete(rasterio.CacheKey) error               { return nil }
func (b *fakeBackend) DriverName() string                          { return "fake" }
func (b *fakeBackend) OpenOptions() map[string]string               { return nil }
func (b *fakeBackend) Path() string                                 { return "" }

func TestReaderPutsSuccessfulReadIntoHotCache(t *testing.T) {
	r := newTestRaster("r1", false)
	arr := sample.NewArray(10, 10, 1, sample.DTypeUint8)
	r.Backend = &fakeBackend{arr: arr}
	store := cache.NewStore(8)
	a := NewReader(r, store)

	cacheFp := r.CacheTiles()[0]
	key := r.CacheKey(r.TileIndexFor(cacheFp))
	rows, cols := cacheFp.Shape()
	win := rasterio.Window{Rows: footprint.Slice{Start: 0, Stop: rows}, Cols: footprint.Slice{Start: 0, Stop: cols}}

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	a.Receive("read_cache_file", []any{q, 0, cacheFp, key, win})

	ck := cache.Key{RasterUID: "r1", Index: key.TileIndex}
	got, ok := store.GetHot(ck)
	if !ok || got != arr {
		t.Fatalf("expected the read array in the hot cache, got %+v ok=%v", got, ok)
	}
}

func TestReaderDoesNotHotCacheAFailedRead(t *testing.T) {
	r := newTestRaster("r1", false)
	boom := errors.New("read failed")
	r.Backend = &fakeBackend{err: boom}
	store := cache.NewStore(8)
	a := NewReader(r, store)

	cacheFp := r.CacheTiles()[0]
	key := r.CacheKey(r.TileIndexFor(cacheFp))
	rows, cols := cacheFp.Shape()
	win := rasterio.Window{Rows: footprint.Slice{Start: 0, Stop: rows}, Cols: footprint.Slice{Start: 0, Stop: cols}}

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	a.Receive("read_cache_file", []any{q, 0, cacheFp, key, win})

	ck := cache.Key{RasterUID: "r1", Index: key.TileIndex}
	if _, ok := store.GetHot(ck); ok {
		t.Fatalf("expected no hot cache entry after a failed read")
	}
}
