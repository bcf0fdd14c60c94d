package actors

import (
	"testing"

	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/sample"
)

func newTestRaster(uid string, recipe bool) *raster.Raster {
	r := &raster.Raster{
		UID:          uid,
		ChannelCount: 1,
		Footprint:    footprint.New(0, 0, 1, -1, 10, 10),
		TileRows:     10,
		TileCols:     10,
	}
	if recipe {
		r.Compute = func(fp footprint.Footprint, _ map[string]footprint.Footprint, _ map[string]*sample.Array, _ any) (*sample.Array, error) {
			return nil, nil
		}
	}
	return r
}

func TestCacheExtractorNonRecipeReadsDirectly(t *testing.T) {
	r := newTestRaster("r1", false)
	store := cache.NewStore(8)
	a := NewCacheExtractor(r, store)

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	msgs := a.Receive(KindSampleThoseCacheFilesToAnArray, []any{q, 0})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Reader") || msgs[0].Kind != "read_cache_file" {
		t.Fatalf("expected a direct read_cache_file to Reader, got %+v", msgs)
	}
}

func TestCacheExtractorRecipeAbsentTriggersCompute(t *testing.T) {
	r := newTestRaster("r1", true)
	store := cache.NewStore(8)
	a := NewCacheExtractor(r, store)

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	msgs := a.Receive(KindSampleThoseCacheFilesToAnArray, []any{q, 0})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Computer") || msgs[0].Kind != KindComputeThisCacheTile {
		t.Fatalf("expected compute_this_cache_tile to Computer, got %+v", msgs)
	}

	ck := cache.Key{RasterUID: "r1", Index: 0}
	if store.State(ck) != cache.StateBuilding {
		t.Fatalf("expected building, got %v", store.State(ck))
	}
}

func TestCacheExtractorFansOutFailedBuildToSubscribers(t *testing.T) {
	r := newTestRaster("r1", true)
	store := cache.NewStore(8)
	a := NewCacheExtractor(r, store)

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	a.Receive(KindSampleThoseCacheFilesToAnArray, []any{q, 0}) // subscribes and starts the build

	ck := cache.Key{RasterUID: "r1", Index: 0}
	store.MarkFailed(ck, errFailedBuild)

	cacheFp := r.CacheTiles()[0]
	msgs := a.Receive(KindCacheFileReady, []any{cacheFp})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Reader") || msgs[0].Kind != "read_cache_file" {
		t.Fatalf("expected the failed build's subscriber to still be routed to Reader, got %+v", msgs)
	}
}

func TestCacheExtractorServesHotCacheWithoutReading(t *testing.T) {
	r := newTestRaster("r1", false)
	store := cache.NewStore(8)
	a := NewCacheExtractor(r, store)

	q := query.NewQuery(1, r.Footprint, r.CacheTiles(), []footprint.Footprint{r.Footprint}, []int{0}, sample.DTypeUint8, 0, 0)
	cacheFp := r.CacheTiles()[0]
	idx := r.TileIndexFor(cacheFp)
	hot := sample.NewArray(10, 10, 1, sample.DTypeUint8)
	store.PutHot(cache.Key{RasterUID: "r1", Index: idx}, hot)

	msgs := a.Receive(KindSampleThoseCacheFilesToAnArray, []any{q, 0})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Producer") || msgs[0].Kind != KindSampledACacheFileToTheArray {
		t.Fatalf("expected a direct sampled-to-array message to Producer, got %+v", msgs)
	}
	if msgs[0].Args[3] != any(hot) {
		t.Fatalf("expected the hot array to be forwarded, got %+v", msgs[0].Args[3])
	}
}

type fakeBuildError struct{}

func (fakeBuildError) Error() string { return "build failed" }

var errFailedBuild = fakeBuildError{}
