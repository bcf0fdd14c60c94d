package actors

import (
	"errors"
	"testing"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/cache"
	"github.com/rs/zerolog"
)

func TestWriterCacheTileFailedMarksStoreFailed(t *testing.T) {
	r := newTestRaster("r1", false)
	store := cache.NewStore(8)
	sched := actor.New(zerolog.Nop())
	w := NewWriter(r, store, sched)

	cacheFp := r.CacheTiles()[0]
	boom := errors.New("compute blew up")

	msgs := w.Receive(KindCacheTileFailed, []any{cacheFp, boom})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "CacheExtractor") || msgs[0].Kind != KindCacheFileReady {
		t.Fatalf("expected cache_file_ready broadcast to CacheExtractor, got %+v", msgs)
	}

	ck := cache.Key{RasterUID: "r1", Index: 0}
	if store.State(ck) != cache.StateFailed {
		t.Fatalf("expected the tile marked failed, got %v", store.State(ck))
	}
	if store.Err(ck) != boom {
		t.Fatalf("expected the recorded error to be the one reported, got %v", store.Err(ck))
	}
}
