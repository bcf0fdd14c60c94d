package actors

import (
	"errors"
	"testing"

	"github.com/rasterq/rasterq/internal/addr"
	"github.com/rasterq/rasterq/internal/footprint"
	"github.com/rasterq/rasterq/internal/query"
	"github.com/rasterq/rasterq/internal/raster"
	"github.com/rasterq/rasterq/internal/sample"
)

func TestMergerSingleInputCommitsDirectly(t *testing.T) {
	r := &raster.Raster{UID: "r1", ChannelCount: 1}
	m := NewMerger(r)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)
	arr := sample.Full(4, 4, 1, sample.DTypeUint8, 0)

	msgs := m.Receive(KindMergeTheseArrays, []any{cacheFp, map[footprint.Footprint]*sample.Array{cacheFp: arr}})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Writer") || msgs[0].Kind != KindWriteThisArray {
		t.Fatalf("expected a direct write_this_array to Writer, got %+v", msgs)
	}
}

func TestMergerInlineMergeCommitsOnSuccess(t *testing.T) {
	r := &raster.Raster{
		UID: "r1", ChannelCount: 1,
		Merge: func(fp footprint.Footprint, arrs map[footprint.Footprint]*sample.Array, _ any) (*sample.Array, error) {
			return sample.Full(4, 4, 1, sample.DTypeUint8, 1), nil
		},
	}
	m := NewMerger(r)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)
	other := footprint.New(4, 0, 1, -1, 4, 4)
	inputs := map[footprint.Footprint]*sample.Array{
		cacheFp: sample.Full(4, 4, 1, sample.DTypeUint8, 0),
		other:   sample.Full(4, 4, 1, sample.DTypeUint8, 0),
	}

	msgs := m.Receive(KindMergeTheseArrays, []any{cacheFp, inputs})
	if len(msgs) != 1 || msgs[0].Kind != KindWriteThisArray {
		t.Fatalf("expected write_this_array, got %+v", msgs)
	}
}

func TestMergerInlineMergeFailsOnShapeMismatch(t *testing.T) {
	r := &raster.Raster{
		UID: "r1", ChannelCount: 1,
		Merge: func(fp footprint.Footprint, arrs map[footprint.Footprint]*sample.Array, _ any) (*sample.Array, error) {
			return sample.Full(2, 2, 1, sample.DTypeUint8, 1), nil // wrong shape
		},
	}
	m := NewMerger(r)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)
	other := footprint.New(4, 0, 1, -1, 4, 4)
	inputs := map[footprint.Footprint]*sample.Array{
		cacheFp: sample.Full(4, 4, 1, sample.DTypeUint8, 0),
		other:   sample.Full(4, 4, 1, sample.DTypeUint8, 0),
	}

	msgs := m.Receive(KindMergeTheseArrays, []any{cacheFp, inputs})
	if len(msgs) != 1 || msgs[0].To != addr.Raster("r1", "Writer") || msgs[0].Kind != KindCacheTileFailed {
		t.Fatalf("expected cache_tile_failed routed to Writer, got %+v", msgs)
	}
	err, _ := msgs[0].Args[1].(error)
	var contractErr *query.ComputeContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("expected a *ComputeContractError, got %v", err)
	}
}

func TestMergerFailsWithoutMergeFuncForMultipleInputs(t *testing.T) {
	r := &raster.Raster{UID: "r1", ChannelCount: 1}
	m := NewMerger(r)
	cacheFp := footprint.New(0, 0, 1, -1, 4, 4)
	other := footprint.New(4, 0, 1, -1, 4, 4)
	inputs := map[footprint.Footprint]*sample.Array{
		cacheFp: sample.Full(4, 4, 1, sample.DTypeUint8, 0),
		other:   sample.Full(4, 4, 1, sample.DTypeUint8, 0),
	}

	msgs := m.Receive(KindMergeTheseArrays, []any{cacheFp, inputs})
	if len(msgs) != 1 || msgs[0].Kind != KindCacheTileFailed {
		t.Fatalf("expected cache_tile_failed, got %+v", msgs)
	}
}
