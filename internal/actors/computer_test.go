package actors

import (
	"errors"
	"testing"

	"github.com/rasterq/rasterq/internal/actor"
	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/sample"
	"github.com/rs/zerolog"
)

func TestComputerNoPrimitivesCommitsOnSuccess(t *testing.T) {
	r := &raster.Raster{
		UID: "r1", ChannelCount: 1,
		Compute: func(fp footprint.Footprint, _ map[string]footprint.Footprint, _ map[string]*sample.Array, _ any) (*sample.Array, error) {
			rows, cols := fp.Shape()
			return sample.Full(rows, cols, 1, sample.DTypeUint8, 1), nil
		},
	}
	sched := actor.New(zerolog.Nop())
	c := NewComputer(r, sched, nil)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)

	msgs := c.Receive(KindComputeThisCacheTile, []any{cacheFp})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Merger") || msgs[0].Kind != KindMergeTheseArrays {
		t.Fatalf("expected merge_those_arrays to Merger, got %+v", msgs)
	}
}

func TestComputerNoPrimitivesFailsOnShapeMismatch(t *testing.T) {
	r := &raster.Raster{
		UID: "r1", ChannelCount: 1,
		Compute: func(fp footprint.Footprint, _ map[string]footprint.Footprint, _ map[string]*sample.Array, _ any) (*sample.Array, error) {
			return sample.Full(1, 1, 1, sample.DTypeUint8, 1), nil // wrong shape
		},
	}
	sched := actor.New(zerolog.Nop())
	c := NewComputer(r, sched, nil)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)

	msgs := c.Receive(KindComputeThisCacheTile, []any{cacheFp})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Writer") || msgs[0].Kind != KindCacheTileFailed {
		t.Fatalf("expected cache_tile_failed to Writer, got %+v", msgs)
	}
	err, _ := msgs[0].Args[1].(error)
	var contractErr *query.ComputeContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected a *ComputeContractError, got %v", err)
	}
}

func TestComputerNoPrimitivesFailsOnHookError(t *testing.T) {
	boom := errors.New("boom")
	r := &raster.Raster{
		UID: "r1", ChannelCount: 1,
		Compute: func(fp footprint.Footprint, _ map[string]footprint.Footprint, _ map[string]*sample.Array, _ any) (*sample.Array, error) {
			return nil, boom
		},
	}
	sched := actor.New(zerolog.Nop())
	c := NewComputer(r, sched, nil)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)

	msgs := c.Receive(KindComputeThisCacheTile, []any{cacheFp})
	if len(msgs) != 1 || msgs[0].Kind != KindCacheTileFailed {
		t.Fatalf("expected cache_tile_failed, got %+v", msgs)
	}
	if !errors.Is(msgs[0].Args[1].(error), boom) {
		t.Fatalf("expected the hook's own error to propagate, got %v", msgs[0].Args[1])
	}
}
